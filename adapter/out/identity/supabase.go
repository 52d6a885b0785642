// Package identity provides the Supabase GoTrue auth adapter.
package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mailtriage/core/port/out"
	"mailtriage/pkg/httputil"

	"github.com/goccy/go-json"
)

// SupabaseAdapter implements out.IdentityProvider against the Supabase
// GoTrue REST API.
type SupabaseAdapter struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseAdapter creates a new SupabaseAdapter.
func NewSupabaseAdapter(baseURL, anonKey string) *SupabaseAdapter {
	return &SupabaseAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		client:  httputil.NewClient(httputil.DefaultClientConfig()),
	}
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type gotrueUser struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	EmailConfirmedAt string `json:"email_confirmed_at"`
	ConfirmedAt      string `json:"confirmed_at"`
}

type gotrueSignUpResponse struct {
	gotrueUser
	// Newer GoTrue versions nest the user under a session envelope.
	User *gotrueUser `json:"user"`
}

type gotrueTokenResponse struct {
	AccessToken string     `json:"access_token"`
	User        gotrueUser `json:"user"`
}

type gotrueError struct {
	Message   string `json:"msg"`
	ErrorCode string `json:"error_code"`
	ErrorDesc string `json:"error_description"`
	Error_    string `json:"error"`
}

func (e *gotrueError) message() string {
	for _, m := range []string{e.Message, e.ErrorDesc, e.Error_} {
		if m != "" {
			return m
		}
	}
	return "unknown auth error"
}

// SignUp registers a new account.
func (a *SupabaseAdapter) SignUp(ctx context.Context, email, password string) (*out.IdentityUser, error) {
	body, status, err := a.post(ctx, "/auth/v1/signup", credentialsPayload{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		return nil, mapSignUpError(status, body)
	}

	var resp gotrueSignUpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}

	user := resp.gotrueUser
	if resp.User != nil {
		user = *resp.User
	}

	return &out.IdentityUser{
		ID:        user.ID,
		Email:     user.Email,
		Confirmed: user.EmailConfirmedAt != "" || user.ConfirmedAt != "",
	}, nil
}

// SignIn authenticates with the password grant and returns the session.
func (a *SupabaseAdapter) SignIn(ctx context.Context, email, password string) (*out.SignInResult, error) {
	body, status, err := a.post(ctx, "/auth/v1/token?grant_type=password", credentialsPayload{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, out.ErrInvalidCredentials
		}
		return nil, decodeError(status, body)
	}

	var resp gotrueTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &out.SignInResult{
		User: out.IdentityUser{
			ID:        resp.User.ID,
			Email:     resp.User.Email,
			Confirmed: resp.User.EmailConfirmedAt != "" || resp.User.ConfirmedAt != "",
		},
		AccessToken: resp.AccessToken,
	}, nil
}

func (a *SupabaseAdapter) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", a.anonKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read auth response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func mapSignUpError(status int, body []byte) error {
	var ge gotrueError
	_ = json.Unmarshal(body, &ge)
	msg := strings.ToLower(ge.message())

	switch {
	case status == http.StatusUnprocessableEntity && strings.Contains(msg, "registered"),
		ge.ErrorCode == "user_already_exists",
		strings.Contains(msg, "already registered"),
		strings.Contains(msg, "already exists"):
		return out.ErrAlreadyRegistered
	case ge.ErrorCode == "weak_password", strings.Contains(msg, "password"):
		return out.ErrWeakPassword
	default:
		return decodeError(status, body)
	}
}

func decodeError(status int, body []byte) error {
	var ge gotrueError
	if err := json.Unmarshal(body, &ge); err == nil && ge.message() != "unknown auth error" {
		return fmt.Errorf("auth service error (status %d): %s", status, ge.message())
	}
	return fmt.Errorf("auth service error (status %d)", status)
}

var _ out.IdentityProvider = (*SupabaseAdapter)(nil)
