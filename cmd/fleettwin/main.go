package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fleet-twin/dashboard/internal/cache"
	"fleet-twin/dashboard/internal/config"
	"fleet-twin/dashboard/internal/dtc"
	"fleet-twin/dashboard/internal/logging"
	"fleet-twin/dashboard/internal/samsara"
	"fleet-twin/dashboard/internal/store"
	transport "fleet-twin/dashboard/internal/transport/http"
	"fleet-twin/dashboard/internal/twin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fleettwin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer log.Sync()

	dtcTable, err := dtc.Load(cfg.DTCDescriptionsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisStore *store.RedisStore
	if cfg.RedisEnabled {
		redisStore, err = store.NewRedisStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer redisStore.Close()
	}

	var pgStore *store.PostgresStore
	if cfg.DBEnabled {
		pgStore, err = store.NewPostgresStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer pgStore.Close()
	}

	client := samsara.NewClient(cfg.APIBaseURL, cfg.MaintenanceBaseURL, cfg.APIToken, cfg.HTTPTimeout, log)
	refresher := twin.NewRefresher(client, twin.NewBuilder(), twin.NewEvaluator(cfg.EnableLegacyAlertRules), log)
	snapshotCache := cache.New(cfg.RefreshTTL)

	server := transport.NewServer(cfg, log, refresher, snapshotCache, redisStore, pgStore, dtcTable)

	log.Infow("starting fleet twin dashboard",
		"vehicles", len(cfg.VehicleIDs),
		"refresh_ttl", cfg.RefreshTTL,
		"redis", cfg.RedisEnabled,
		"db", cfg.DBEnabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return server.RunPoller(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
