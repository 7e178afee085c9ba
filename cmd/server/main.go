// Command portal-server starts the civic complaint portal API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openmunicipal/civicportal/internal/captcha"
	"github.com/openmunicipal/civicportal/internal/config"
	"github.com/openmunicipal/civicportal/internal/limiter"
	"github.com/openmunicipal/civicportal/internal/mail"
	"github.com/openmunicipal/civicportal/internal/migrate"
	"github.com/openmunicipal/civicportal/internal/repository/postgres"
	httpapi "github.com/openmunicipal/civicportal/internal/server/http"
	"github.com/openmunicipal/civicportal/internal/service"
	"github.com/openmunicipal/civicportal/internal/session"
	"github.com/openmunicipal/civicportal/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Flags override environment values
	addr := flag.String("addr", cfg.Addr, "listen address")
	dsn := flag.String("dsn", cfg.DSN, "PostgreSQL DSN")
	jwtKey := flag.String("jwt-key", cfg.JWTKey, "HS256 signing key (required)")
	uploadDir := flag.String("upload-dir", cfg.UploadDir, "attachment storage directory")
	devMail := flag.Bool("dev-mail", false, "log OTP codes instead of sending mail")
	flag.Parse()

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or PORTAL_JWT_KEY)")
	}
	if !*devMail && cfg.MailBaseURL == "" {
		logger.Fatal("missing mail provider base url (PORTAL_MAIL_BASE_URL); use --dev-mail for local runs")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, *dsn); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Redis: verification sessions and captcha answers
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis ping", zap.Error(err))
	}

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	complaintRepo := postgres.NewComplaintRepo(db)
	wardRepo := postgres.NewWardRepo(db)
	statsRepo := postgres.NewStatsRepo(db)

	lim := limiter.NewPG(pool, 15*time.Minute, 5, 15*time.Minute)
	sessions := session.NewRedis(rdb)
	captchaSvc := captcha.New(captcha.NewRedisStore(rdb), 5*time.Minute)

	blobs, err := storage.NewDisk(*uploadDir)
	if err != nil {
		logger.Fatal("storage.NewDisk", zap.Error(err))
	}

	var sender mail.Sender
	if *devMail {
		sender = &mail.LogSender{Logger: logger}
	} else {
		sender = mail.NewHTTPSender(cfg.MailBaseURL, cfg.MailAPIKey, cfg.MailFrom, logger)
	}

	// Services
	key := []byte(*jwtKey)
	authSvc := service.NewAuthService(userRepo, key, cfg.AccessTTL, lim)
	complaintSvc := service.NewComplaintService(complaintRepo, userRepo, wardRepo, blobs)
	guestSvc := service.NewGuestService(
		userRepo, complaintRepo, sessions, captchaSvc, sender, blobs, lim,
		key, cfg.AccessTTL, cfg.OTPTTL, cfg.OTPMaxAttempts, logger,
	)
	adminSvc := service.NewAdminService(userRepo, complaintRepo, statsRepo)

	api := httpapi.New(guestSvc, authSvc, complaintSvc, adminSvc, captchaSvc, key, logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
