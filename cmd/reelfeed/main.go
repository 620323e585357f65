package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
	"github.com/reelfeed/reelfeed/internal/server"
	"github.com/reelfeed/reelfeed/internal/storage"
	"github.com/reelfeed/reelfeed/internal/video"
	"github.com/reelfeed/reelfeed/internal/webhook"
)

const usage = `usage:
  reelfeed                       run the API server
  reelfeed token <user-id>       print an access token for a user
  reelfeed feed <slug> [index]   swipe through a playlist against REELFEED_API_URL`

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "token":
			if err := runToken(os.Stdout, cfg, os.Args[2:]); err != nil {
				log.Fatal(err)
			}
			return
		case "feed":
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			err := runFeed(ctx, os.Stdout, cfg.Player, os.Args[2:])
			stop()
			if err != nil {
				log.Fatal(err)
			}
			return
		case "-h", "--help", "help":
			fmt.Println(usage)
			return
		default:
			log.Fatalf("unknown command %q\n%s", os.Args[1], usage)
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.URL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")

	store, err := storage.New(ctx, storage.Config{
		Endpoint:       cfg.Storage.Endpoint,
		PublicEndpoint: cfg.Storage.PublicEndpoint,
		Bucket:         cfg.Storage.Bucket,
		AccessKey:      cfg.Storage.AccessKey,
		SecretKey:      cfg.Storage.SecretKey,
		Region:         cfg.Storage.Region,
	})
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}

	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("storage bucket check failed: %v", err)
	}
	if err := store.SetCORS(ctx, cfg.Server.AllowedOrigins); err != nil {
		log.Printf("storage CORS not applied: %v", err)
	}
	log.Println("storage bucket ready")

	geo, err := geoip.New(cfg.GeoIP.DatabasePath)
	if err != nil {
		log.Printf("geoip disabled: %v", err)
	}
	defer func() { _ = geo.Close() }()
	if geo.Enabled() {
		log.Println("geoip lookups enabled")
	}

	var events video.EventSink
	if cfg.Webhook.URL != "" {
		events = webhook.New(db.Pool, cfg.Webhook.URL, cfg.Webhook.Secret)
		log.Println("engagement webhooks enabled")
	}

	srv := server.New(server.Config{
		DB:                    db.Pool,
		Pinger:                db,
		Storage:               store,
		Events:                events,
		GeoResolver:           geo,
		JWTSecret:             cfg.Auth.JWTSecret,
		BaseURL:               cfg.BaseURL,
		S3PublicEndpoint:      cfg.Storage.PublicEndpoint,
		AllowedOrigins:        cfg.Server.AllowedOrigins,
		AllowedFrameAncestors: cfg.Server.AllowedFrameAncestors,
		MediaURLTTL:           cfg.Storage.URLTTL,
		ActionsPerSecond:      cfg.Server.ActionsPerSecond,
		ActionsBurst:          cfg.Server.ActionsBurst,
		EnableDocs:            cfg.Server.EnableDocs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("reelfeed listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	srv.Close()
	log.Println("shutdown complete")
}

// runToken mints an access token so a player can be pointed at a local server
// without a separate identity provider.
func runToken(out io.Writer, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("token: expected exactly one user id\n%s", usage)
	}
	if cfg.Auth.JWTSecret == "" {
		return config.ErrMissingJWTSecret
	}
	userID := args[0]
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("token: invalid user id %q: %w", userID, err)
	}

	token, err := auth.GenerateAccessTokenTTL(cfg.Auth.JWTSecret, userID, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
