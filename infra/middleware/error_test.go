package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mailtriage/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

func newErrorTestApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID())
	app.Get("/sync-busy", func(c *fiber.Ctx) error {
		return apperr.SyncInProgress()
	})
	app.Get("/no-account", func(c *fiber.Ctx) error {
		return apperr.AuthRequired("")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperr.MissingField("email")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("something broke")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, path string) (int, ErrorResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, body
}

func TestErrorHandlerAppError(t *testing.T) {
	app := newErrorTestApp()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"sync in progress", "/sync-busy", http.StatusConflict, apperr.CodeSyncInProgress},
		{"auth required", "/no-account", http.StatusBadRequest, apperr.CodeAuthRequired},
		{"missing field", "/missing", http.StatusBadRequest, apperr.CodeMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, tt.path)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Success {
				t.Error("success = true, want false")
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if body.Error.Message == "" {
				t.Error("error message is empty")
			}
			if body.RequestID == "" {
				t.Error("request_id is empty")
			}
		})
	}
}

func TestErrorHandlerMissingFieldDetails(t *testing.T) {
	app := newErrorTestApp()

	_, body := doRequest(t, app, "/missing")
	if got := body.Error.Details["field"]; got != "email" {
		t.Errorf("details.field = %v, want %q", got, "email")
	}
}

func TestErrorHandlerPlainError(t *testing.T) {
	app := newErrorTestApp()

	status, body := doRequest(t, app, "/boom")
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", status, http.StatusInternalServerError)
	}
	if body.Error.Code != apperr.CodeInternalError {
		t.Errorf("error code = %q, want %q", body.Error.Code, apperr.CodeInternalError)
	}
	if body.Error.Message != "An unexpected error occurred" {
		t.Errorf("error message = %q", body.Error.Message)
	}
}

func TestErrorHandlerFiberError(t *testing.T) {
	app := newErrorTestApp()

	status, body := doRequest(t, app, "/nowhere")
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", status, http.StatusNotFound)
	}
	if body.Error.Code != apperr.CodeNotFound {
		t.Errorf("error code = %q, want %q", body.Error.Code, apperr.CodeNotFound)
	}
}
