package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mailtriage/config"
	"mailtriage/core/service/auth"
	"mailtriage/internal/bootstrap"
	"mailtriage/pkg/logger"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "mailtriage",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "api", "Run mode: api, sync")
	user := flag.String("user", "", "Mailbox email to sync (sync mode)")
	max := flag.Int64("max", 0, "Maximum messages per batch (sync mode)")
	query := flag.String("query", "", "Provider search query (sync mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: %v", err)
	}

	switch *mode {
	case "api":
		runAPI(cfg)
	case "sync":
		runSync(cfg, *user, *max, *query)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("API server shut down gracefully")
			}
		case <-ctx.Done():
			logger.Warn("API shutdown timed out, forcing exit")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

func runSync(cfg *config.Config, userEmail string, maxEmails int64, query string) {
	if userEmail == "" {
		logger.Fatal("-user is required in sync mode")
	}
	if maxEmails <= 0 {
		maxEmails = int64(cfg.SyncMaxEmails)
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := deps.SyncService.RunBatch(ctx, userEmail, maxEmails, query)
	if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrReauthRequired) {
		logger.Info("No usable Gmail session for %s, starting authorization", userEmail)
		if err := connectInteractively(ctx, deps, userEmail); err != nil {
			logger.Fatal("Authorization failed: %v", err)
		}
		summary, err = deps.SyncService.RunBatch(ctx, userEmail, maxEmails, query)
	}
	if err != nil {
		logger.Fatal("Sync failed: %v", err)
	}

	fmt.Printf("Sync complete: processed=%d skipped=%d errors=%d\n",
		summary.Processed, summary.Skipped, summary.Errors)
}

// connectInteractively walks the OAuth consent flow on the terminal: the
// user opens the printed URL, approves, and pastes the redirect URL back so
// code and state can be extracted from it.
func connectInteractively(ctx context.Context, deps *bootstrap.Dependencies, userEmail string) error {
	consentURL, err := deps.OAuthService.BeginAuth(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in a browser and approve access:")
	fmt.Println()
	fmt.Println("  " + consentURL)
	fmt.Println()
	fmt.Print("Paste the full redirect URL here: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read redirect URL: %w", err)
	}

	code, state, err := parseRedirect(strings.TrimSpace(line))
	if err != nil {
		return err
	}

	session, token, err := deps.OAuthService.CompleteAuth(ctx, code, state)
	if err != nil {
		return err
	}

	if !strings.EqualFold(session.AccountEmail(), userEmail) {
		logger.Warn("Authorized mailbox %s differs from requested %s", session.AccountEmail(), userEmail)
	}

	userID, err := deps.UserRepo.Upsert(ctx, session.AccountEmail(), nil)
	if err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	if err := deps.OAuthService.SaveToken(ctx, userID, token, deps.Config.GmailScopes); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Gmail account %s connected.\n", session.AccountEmail())
	return nil
}

func parseRedirect(raw string) (code, state string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	code = u.Query().Get("code")
	state = u.Query().Get("state")
	if code == "" || state == "" {
		return "", "", fmt.Errorf("redirect URL is missing code or state")
	}
	return code, state, nil
}
