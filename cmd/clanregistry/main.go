package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/clanforge/clan-registry/internal/api"
	"github.com/clanforge/clan-registry/internal/bot"
	"github.com/clanforge/clan-registry/internal/core/ports"
	"github.com/clanforge/clan-registry/internal/core/service"
	"github.com/clanforge/clan-registry/internal/infrastructure/config"
	"github.com/clanforge/clan-registry/internal/infrastructure/db/redis"
	"github.com/clanforge/clan-registry/internal/infrastructure/platform"
	"github.com/clanforge/clan-registry/internal/infrastructure/storage/file"
	"github.com/clanforge/clan-registry/internal/infrastructure/storage/github"
	"github.com/clanforge/clan-registry/internal/infrastructure/storage/mongodb"
	"github.com/clanforge/clan-registry/pkg/logger"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		// missing ADAPTER_SECRET or OWNER_ID lands here: fail fast
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- Storage backend ---
	backend, shutdownStorage, err := buildBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage backend init failed")
	}
	defer shutdownStorage()

	// --- Optional Redis dedup ---
	var rdb *goredis.Client
	var dedup bot.DedupChecker
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("redis init failed")
		}
		defer rdb.Close()
		dedup = redis.NewDedupChecker(rdb)
	}

	// --- Outbound messenger ---
	var messenger ports.Messenger
	if cfg.AdapterURL != "" {
		messenger = platform.NewHTTPMessenger(cfg.AdapterURL, cfg.AdapterSecret)
	} else {
		log.Warn().Msg("no ADAPTER_URL configured, outbound messages will only be logged")
		messenger = platform.NewLogMessenger(log)
	}

	// --- Core services ---
	records := service.NewRecordService(backend, service.RecordStoreOptions{
		RecordsPath: cfg.Storage.RecordsPath,
		AuthPath:    cfg.Storage.AuthPath,
		OwnerID:     cfg.OwnerID,
		Retries:     cfg.Storage.SaveRetries,
		Backoff:     cfg.Storage.SaveBackoff,
	}, log)
	gate := service.NewAuthService(records, cfg.OwnerID, log)
	sessions := service.NewSessionStore()
	conv := service.NewConversationService(sessions, records, messenger, log)
	reports := service.NewReportService(records, log)

	dispatcher := bot.NewDispatcher(gate, conv, records, reports, sessions, messenger, dedup, log)
	dispatcher.Start(ctx)

	// --- Ops/ingest server ---
	e := api.NewRouter(api.RouterOptions{
		Dispatcher:    dispatcher,
		Backend:       backend,
		RecordsPath:   cfg.Storage.RecordsPath,
		Redis:         rdb,
		AdapterSecret: cfg.AdapterSecret,
		Logger:        log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server start failed")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("backend", cfg.Storage.Backend).
		Int64("owner", cfg.OwnerID).
		Msg("clan registry started")

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// buildBackend constructs the configured document backend and returns a
// shutdown function for backends holding connections.
func buildBackend(ctx context.Context, cfg *config.Config) (ports.Backend, func(), error) {
	noop := func() {}
	switch cfg.Storage.Backend {
	case "file":
		b, err := file.New(cfg.Storage.DataDir)
		return b, noop, err
	case "github":
		if cfg.GitHub.Token == "" || cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
			return nil, noop, fmt.Errorf("github backend requires GITHUB_TOKEN, GITHUB_OWNER and GITHUB_REPO")
		}
		return github.New(github.Config{
			Token:  cfg.GitHub.Token,
			Owner:  cfg.GitHub.Owner,
			Repo:   cfg.GitHub.Repo,
			Branch: cfg.GitHub.Branch,
		}), noop, nil
	case "mongodb":
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, noop, err
		}
		shutdown := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		return mongodb.NewBackend(db), shutdown, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
