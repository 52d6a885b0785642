package bootstrap

import (
	"mailtriage/adapter/out/identity"
	"mailtriage/adapter/out/persistence"
	"mailtriage/adapter/out/provider/gmail"
	"mailtriage/adapter/out/state"
	"mailtriage/config"
	"mailtriage/core/llm"
	"mailtriage/core/port/out"
	"mailtriage/core/service/auth"
	"mailtriage/core/service/classify"
	syncsvc "mailtriage/core/service/sync"
	"mailtriage/infra/database"
	"mailtriage/pkg/crypto"
	"mailtriage/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Repositories
	UserRepo       out.UserRepository
	CredentialRepo out.CredentialRepository
	EmailRepo      out.EmailRepository
	Locker         out.BatchLocker
	StateStore     out.StateStore

	// Providers
	Identity     out.IdentityProvider
	MailProvider out.MailProvider
	LLMClient    *llm.Client

	// Services
	OAuthService *auth.OAuthService
	Classifier   *classify.Service
	SyncService  *syncsvc.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.PostgresDSN())
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// sqlx over the same pool for struct scanning
	sqlDB := database.NewSQLX(db)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis (optional). Without it the OAuth state store falls back to
	// process memory, which is fine for a single instance.
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed, using in-memory state store: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}

	if deps.Redis != nil {
		deps.StateStore = state.NewRedisStore(deps.Redis)
	} else {
		deps.StateStore = state.NewMemoryStore()
	}

	// Token encryption at rest (optional)
	var encryptor *crypto.Encryptor
	if key := encryptionKey(cfg); key != "" {
		encryptor, err = crypto.NewEncryptor([]byte(key))
		if err != nil {
			logger.Warn("Failed to initialize token encryption: %v", err)
		}
	}

	// Repositories
	deps.UserRepo = persistence.NewUserAdapter(sqlDB)
	deps.CredentialRepo = persistence.NewCredentialAdapter(sqlDB, encryptor)
	deps.EmailRepo = persistence.NewEmailAdapter(sqlDB)
	deps.Locker = persistence.NewLockAdapter(db)

	// Gmail provider
	gmailProvider, err := gmail.NewProvider(&gmail.Config{
		CredentialsFile: cfg.GoogleCredentialsFile,
		ClientID:        cfg.GoogleClientID,
		ClientSecret:    cfg.GoogleClientSecret,
		RedirectURL:     cfg.GoogleRedirectURL,
		Scopes:          cfg.GmailScopes,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.MailProvider = gmailProvider

	// Identity provider (Supabase GoTrue)
	if cfg.SupabaseURL != "" {
		deps.Identity = identity.NewSupabaseAdapter(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	} else {
		logger.Warn("SUPABASE_URL not configured, signup/login endpoints will be unavailable")
	}

	// LLM client
	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})

	// Services
	deps.OAuthService = auth.NewOAuthService(deps.MailProvider, deps.StateStore, deps.CredentialRepo)
	deps.Classifier = classify.NewService(deps.LLMClient)
	deps.SyncService = syncsvc.NewService(deps.UserRepo, deps.EmailRepo, deps.Locker, deps.OAuthService, deps.Classifier)

	return deps, cleanup, nil
}

// encryptionKey resolves the token encryption key, falling back to the JWT
// secret so encryption stays on in deployments that only set that.
func encryptionKey(cfg *config.Config) string {
	if cfg.EncryptionKey != "" {
		return cfg.EncryptionKey
	}
	return cfg.JWTSecret
}
