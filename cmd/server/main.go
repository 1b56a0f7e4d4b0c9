package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamvault/backend/internal/audit"
	auditrepo "streamvault/backend/internal/audit/repository"
	"streamvault/backend/internal/config"
	"streamvault/backend/internal/db"
	"streamvault/backend/internal/identity/provider"
	"streamvault/backend/internal/identity/resolver"
	"streamvault/backend/internal/identity/service"
	"streamvault/backend/internal/notify"
	"streamvault/backend/internal/revocation"
	"streamvault/backend/internal/secrettoken"
	secretrepo "streamvault/backend/internal/secrettoken/repository"
	"streamvault/backend/internal/security"
	"streamvault/backend/internal/server"
	sessionrepo "streamvault/backend/internal/session/repository"
	"streamvault/backend/internal/telemetry/otel"
	userrepo "streamvault/backend/internal/user/repository"
)

const registrySweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "streamvault-auth", false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	codec, err := security.NewTokenCodec(
		[]byte(cfg.JWTAccessSecret), []byte(cfg.JWTRefreshSecret),
		cfg.JWTIssuer, cfg.JWTAudience,
		cfg.AccessTTL(), cfg.RefreshTTL(),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)
	registry := revocation.NewMemoryRegistry()

	users := userrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	secrets := secrettoken.NewIssuer(secretrepo.NewPostgresRepository(pool), cfg.SecretTokenLifetime())
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(pool), nil)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL)
	}

	// A nil *Client must stay a nil interface so the provider paths are disabled.
	var svcProvider service.Provider
	var resProvider provider.Verifier
	if cfg.ProviderBaseURL != "" {
		client := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
		svcProvider, resProvider = client, client
	}

	authSvc := service.NewAuthService(
		users, sessions, secrets,
		hasher, codec, registry,
		notifier, svcProvider, auditor,
		cfg.SessionWindow(), cfg.SessionRememberWindow(),
		cfg.LinkBaseURL,
	)
	res := resolver.New(codec, registry, sessions, users, resProvider)

	srv := server.New(authSvc, res, cfg.Env == "production", cfg.AccessTTL())
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(registrySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				registry.Sweep()
			case <-sweepDone:
				return
			}
		}
	}()

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	close(sweepDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
