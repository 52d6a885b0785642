package out

import (
	"context"
	"errors"
)

// Identity provider failures that handlers map to specific HTTP statuses.
var (
	ErrAlreadyRegistered  = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IdentityUser is the auth provider's view of an account.
type IdentityUser struct {
	ID        string
	Email     string
	Confirmed bool
}

// SignInResult carries the provider session issued on login.
type SignInResult struct {
	User        IdentityUser
	AccessToken string
}

// IdentityProvider delegates signup/login to the third-party auth service.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*IdentityUser, error)
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
}
