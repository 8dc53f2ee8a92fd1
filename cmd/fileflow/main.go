package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/fileflow/internal/blob"
	"github.com/dukerupert/fileflow/internal/config"
	"github.com/dukerupert/fileflow/internal/database"
	"github.com/dukerupert/fileflow/internal/logging"
	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/payment/stripe"
	"github.com/dukerupert/fileflow/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: fileflow [-env file]\n\n%s", config.Usage())
	}
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		rand.Read(secret)
		slog.Warn("FILEFLOW_SESSION_SECRET not set, using a random key; flash cookies will not survive a restart")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	blobs, err := blob.Open(cfg.Storage.Backend, cfg.Storage.Dir, blob.S3Config{
		Endpoint:  cfg.Storage.S3Endpoint,
		Bucket:    cfg.Storage.S3Bucket,
		Region:    cfg.Storage.S3Region,
		AccessKey: cfg.Storage.S3AccessKey,
		SecretKey: cfg.Storage.S3SecretKey,
		Prefix:    cfg.Storage.S3Prefix,
	})
	if err != nil {
		slog.Error("failed to open blob storage", "error", err)
		os.Exit(1)
	}

	if cfg.Stripe.SecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY not set, checkout will fail")
	}
	processor := stripe.NewClient(stripe.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
	})

	srv, err := server.New(server.Config{
		BaseURL:         cfg.Server.BaseURL,
		SessionSecret:   secret,
		SecureCookies:   cfg.IsProduction(),
		StaffFileAccess: cfg.Access.StaffFileAccess,
	}, db, blobs, processor, metrics.New(), logger)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("fileflow starting", "addr", httpServer.Addr, "storage", cfg.Storage.Backend, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
