// Package app wires the service together: configuration from the
// environment, the Postgres pool, migrations, the identity core and the
// CRUD handlers, and the route table.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"petregistry/internal/auth"
	"petregistry/internal/cache"
	"petregistry/internal/contact"
	"petregistry/internal/db"
	"petregistry/internal/mail"
	"petregistry/internal/maintenance"
	"petregistry/internal/media"
	"petregistry/internal/observability"
	"petregistry/internal/owner"
	"petregistry/internal/pet"
	"petregistry/internal/ratelimit"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger("petregistry")

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development"), os.Getenv("APP_RELEASE")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	identityCache, closeCache, err := buildIdentityCache(logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	mailer := buildMailer(logger)

	authRepo := auth.NewRepository(database)
	tokenService := auth.NewTokenService(jwtSecret)
	hasher := auth.NewPasswordHasher()
	sessionService := auth.NewService(authRepo, tokenService, hasher, identityCache, mailer, logger).
		WithTokenTTLs(
			envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
			envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
			envMinutesOrDefault("IDENTITY_CACHE_TTL_MINUTES", 5),
		)
	authHandler := auth.NewHandler(sessionService)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("UNCONFIRMED_ACCOUNT_RETENTION_DAYS", 7),
		envIntOrDefault("CLEANUP_BATCH_SIZE", 500),
	)

	contactHandler := contact.NewHandler(contact.NewRepository(database))
	petHandler := pet.NewHandler(pet.NewRepository(database))
	ownerHandler := owner.NewHandler(owner.NewRepository(database))

	var avatarHandler *media.AvatarHandler
	if cloudinaryURL := strings.TrimSpace(os.Getenv("CLOUDINARY_URL")); cloudinaryURL != "" {
		uploader, err := media.NewCloudinary(cloudinaryURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init cloudinary: %w", err)
		}
		avatarHandler = media.NewAvatarHandler(uploader, authRepo)
	}

	limiter := ratelimit.NewLimiter(
		envIntOrDefault("RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	guard := sessionService.Middleware
	limited := func(endpoint string, h http.Handler) http.Handler {
		return limiter.Middleware(endpoint, h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/signup", limited("auth_signup", http.HandlerFunc(authHandler.Signup)))
	mux.Handle("GET /auth/confirm/{token}", limited("auth_confirm", http.HandlerFunc(authHandler.Confirm)))
	mux.Handle("POST /auth/login", limited("auth_login", http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /auth/refresh", limited("auth_refresh", http.HandlerFunc(authHandler.Refresh)))
	mux.Handle("POST /auth/logout", guard(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /auth/password", limited("auth_password", guard(http.HandlerFunc(authHandler.ChangePassword))))
	mux.Handle("GET /auth/me", guard(http.HandlerFunc(authHandler.Me)))

	mux.Handle("GET /contacts", limited("contacts", guard(http.HandlerFunc(contactHandler.ListContacts))))
	mux.Handle("POST /contacts", limited("contacts", guard(http.HandlerFunc(contactHandler.CreateContact))))
	mux.Handle("GET /contacts/birthdays", limited("contacts", guard(http.HandlerFunc(contactHandler.UpcomingBirthdays))))
	mux.Handle("GET /contacts/{id}", limited("contacts", guard(http.HandlerFunc(contactHandler.GetContact))))
	mux.Handle("PUT /contacts/{id}", limited("contacts", guard(http.HandlerFunc(contactHandler.UpdateContact))))
	mux.Handle("DELETE /contacts/{id}", limited("contacts", guard(http.HandlerFunc(contactHandler.DeleteContact))))

	mux.Handle("GET /pets", limited("pets", guard(http.HandlerFunc(petHandler.ListPets))))
	mux.Handle("POST /pets", limited("pets", guard(http.HandlerFunc(petHandler.CreatePet))))
	mux.Handle("GET /pets/{id}", limited("pets", guard(http.HandlerFunc(petHandler.GetPet))))
	mux.Handle("PUT /pets/{id}", limited("pets", guard(http.HandlerFunc(petHandler.UpdatePet))))
	mux.Handle("PATCH /pets/{id}/vaccinated", limited("pets", guard(http.HandlerFunc(petHandler.SetVaccinated))))
	mux.Handle("DELETE /pets/{id}", limited("pets", guard(http.HandlerFunc(petHandler.DeletePet))))

	mux.Handle("GET /owners", limited("owners", guard(http.HandlerFunc(ownerHandler.ListOwners))))
	mux.Handle("POST /owners", limited("owners", guard(http.HandlerFunc(ownerHandler.CreateOwner))))
	mux.Handle("GET /owners/{id}", limited("owners", guard(http.HandlerFunc(ownerHandler.GetOwner))))
	mux.Handle("PUT /owners/{id}", limited("owners", guard(http.HandlerFunc(ownerHandler.UpdateOwner))))
	mux.Handle("DELETE /owners/{id}", limited("owners", guard(http.HandlerFunc(ownerHandler.DeleteOwner))))

	if avatarHandler != nil {
		mux.Handle("POST /media/avatar", limited("media_avatar", guard(http.HandlerFunc(avatarHandler.Upload))))
	}

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.Recover(logger, observability.RequestLogging(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			if closeCache != nil {
				_ = closeCache()
			}
			return database.Close()
		},
	}, nil
}

// buildIdentityCache picks Redis when REDIS_ADDR is set so that multiple
// instances share invalidation; otherwise a per-process TTL map.
func buildIdentityCache(logger *observability.Logger) (auth.IdentityCache, func() error, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return cache.NewMemory(), nil, nil
	}

	redisCache, err := cache.NewRedis(addr, os.Getenv("REDIS_PASSWORD"), envIntOrDefault("REDIS_DB", 0))
	if err != nil {
		return nil, nil, fmt.Errorf("init redis cache: %w", err)
	}

	logger.Info("identity_cache_redis", map[string]any{"addr": addr})
	return redisCache, redisCache.Close, nil
}

// buildMailer falls back to a log-only sender when SMTP is not configured,
// so signup works in development without a mail server.
func buildMailer(logger *observability.Logger) mail.Sender {
	host := strings.TrimSpace(os.Getenv("MAIL_HOST"))
	if host == "" {
		return mail.NewLogSender(func(recipient, token string) {
			logger.Info("confirmation_email_skipped", map[string]any{"recipient": recipient})
		})
	}

	return mail.NewSMTPSender(
		host,
		envOrDefault("MAIL_PORT", "587"),
		os.Getenv("MAIL_USERNAME"),
		os.Getenv("MAIL_PASSWORD"),
		envOrDefault("MAIL_FROM", "no-reply@petregistry.local"),
		envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
	)
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
