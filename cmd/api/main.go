// cmd/api/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"northbound-api/internal/api"
	"northbound-api/internal/common/aws"
	"northbound-api/internal/common/config"
	"northbound-api/internal/common/database"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/common/observability"
	"northbound-api/internal/notifier"
	"northbound-api/internal/predictions"
	"northbound-api/internal/ratelimit"
	"northbound-api/internal/subscription"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./configs)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting northbound-api", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		// The cache is optional; run degraded rather than refusing to start.
		log.WithError(err).Warn("redis unreachable, predictions cache degraded", nil)
	}

	var objects predictions.ObjectGetter
	if cfg.Predictions.LocalDir != "" {
		objects = predictions.LocalGetter{Dir: cfg.Predictions.LocalDir}
		log.Info("serving predictions from local directory", map[string]interface{}{
			"dir": cfg.Predictions.LocalDir,
		})
	} else {
		s3Client, err := aws.NewS3Client(ctx, cfg.Predictions.AWSRegion)
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		objects = s3Client
	}

	predSvc, err := predictions.NewService(objects, rdb.GetClient(), cfg.Predictions, log)
	if err != nil {
		return fmt.Errorf("predictions service: %w", err)
	}

	sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		if cfg.Notifications.Email.Enabled {
			return fmt.Errorf("ses client: %w", err)
		}
		sesClient = nil
	}
	emailNotifier := notifier.NewEmailNotifier(sesClient, cfg.Notifications, log)

	subStore := subscription.NewStore(pg, config.GetDuration(cfg.Database.Postgres.QueryTimeout))
	subSvc := subscription.NewService(subStore, emailNotifier, cfg.Subscriptions, log)

	limiter := ratelimit.NewLimiter(pg, cfg.RateLimits, cfg.Subscriptions.PurgeRetentionHours, log)

	obs := observability.New("northbound-api", log)
	defer obs.Shutdown()

	router := api.NewRouter(api.Deps{
		Config:        cfg,
		Subscriptions: subSvc,
		Predictions:   predSvc,
		Limiter:       limiter,
		Postgres:      pg,
		Redis:         rdb,
		Logger:        log,
		Observability: obs,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.RequestTimeout),
		WriteTimeout: 2 * config.GetDuration(cfg.HTTP.RequestTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("stopped", nil)
	return nil
}
