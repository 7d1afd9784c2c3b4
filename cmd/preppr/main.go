package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/preppr/internal/config"
	"github.com/dukerupert/preppr/internal/database"
	"github.com/dukerupert/preppr/internal/email"
	"github.com/dukerupert/preppr/internal/logging"
	"github.com/dukerupert/preppr/internal/membership"
	"github.com/dukerupert/preppr/internal/middleware"
	"github.com/dukerupert/preppr/internal/password"
	"github.com/dukerupert/preppr/internal/server"
	"github.com/dukerupert/preppr/internal/session"
	"github.com/dukerupert/preppr/internal/store"
	"github.com/dukerupert/preppr/internal/token"
	ws "github.com/dukerupert/preppr/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	codec, err := token.NewCodec(token.Config{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTLs:   cfg.TTL.TokenTTLs(),
	})
	if err != nil {
		logger.Error("failed to create token codec", "error", err)
		os.Exit(1)
	}

	hasher, err := password.NewHasher(password.WithCost(cfg.BcryptCost))
	if err != nil {
		logger.Error("failed to create password hasher", "error", err)
		os.Exit(1)
	}

	var mailer email.Mailer = email.LogMailer{Logger: logger.With("component", "email")}
	if postmark := email.NewClient(cfg.PostmarkToken, cfg.FromEmail); postmark.Configured() {
		mailer = postmark
	} else {
		logger.Warn("PREPPR_POSTMARK_SERVER_TOKEN not set, emails will be logged")
	}

	st := store.New(db)
	hub := ws.NewHub(logger.With("component", "websocket"))

	sessions := session.New(st, codec, hasher, mailer, session.Config{FrontendURL: cfg.FrontendURL}, logger)
	members := membership.New(st, codec, hasher, mailer, hub, membership.Config{FrontendURL: cfg.FrontendURL}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SuperAdminEmail != "" {
		created, err := sessions.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
		if err != nil {
			logger.Error("failed to create super admin", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("super admin bootstrapped", "email", cfg.SuperAdminEmail)
		}
	}

	srv := server.New(codec, sessions, members, hub, server.Config{
		SecureCookie:   cfg.SecureCookie,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		TrustedProxies: cfg.TrustedProxies,
	}, logger)

	go runSweeper(ctx, members, srv.RateLimiter(), logger.With("component", "sweeper"))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("preppr listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// runSweeper purges expired invitations and stale rate-limit windows every
// hour until ctx is cancelled.
func runSweeper(ctx context.Context, members *membership.Coordinator, limiter *middleware.RateLimiter, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := members.PurgeExpiredInvitations(ctx)
			if err != nil {
				logger.Error("purge expired invitations", "error", err)
			} else if n > 0 {
				logger.Info("purged expired invitations", "count", n)
			}
			limiter.Cleanup()
		}
	}
}
