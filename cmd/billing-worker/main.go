package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rentiva/rentiva-backend/internal/billing"
	"github.com/rentiva/rentiva-backend/internal/companies"
	"github.com/rentiva/rentiva-backend/internal/cron"
	"github.com/rentiva/rentiva-backend/internal/notifier"
	"github.com/rentiva/rentiva-backend/internal/plans"
	"github.com/rentiva/rentiva-backend/internal/subscriptions"
	"github.com/rentiva/rentiva-backend/pkg/config"
	"github.com/rentiva/rentiva-backend/pkg/db"
	"github.com/rentiva/rentiva-backend/pkg/logger"
	"github.com/rentiva/rentiva-backend/pkg/metrics"
	"github.com/rentiva/rentiva-backend/pkg/migrate"
	"github.com/rentiva/rentiva-backend/pkg/pubsub"
	"github.com/rentiva/rentiva-backend/pkg/redis"
)

const lockKeyFormat = "rv:billing-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "billing-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "billing-worker"

	logg = logger.New(logger.Options{
		ServiceName: "billing-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Without a configured GCP project notifications fall back to the log.
	var notify notifier.Notifier = notifier.NewLogNotifier(logg)
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notify, err = notifier.NewPubSubNotifier(psClient.NotificationPublisher())
		if err != nil {
			logg.Error(context.Background(), "failed to create pubsub notifier", err)
			os.Exit(1)
		}
	}

	companyRepo := companies.NewRepository(dbClient.DB())
	planRepo := plans.NewRepository(dbClient.DB())
	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	paymentRepo := billing.NewRepository(dbClient.DB())

	subscriptionSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Logger:    logg,
		DB:        dbClient,
		Repo:      subscriptionRepo,
		Companies: companyRepo,
		Plans:     planRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	billingSvc, err := billing.NewService(billing.ServiceParams{
		Logger:        logg,
		DB:            dbClient,
		Repo:          paymentRepo,
		Subscriptions: subscriptionRepo,
		Companies:     companyRepo,
		Notifier:      notify,
		InvoicePrefix: cfg.Billing.InvoiceNumberPrefix,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cycle lock", err)
		os.Exit(1)
	}

	expireJob, err := cron.NewSubscriptionExpireJob(cron.SubscriptionExpireJobParams{
		Logger:    logg,
		Repo:      subscriptionRepo,
		Lifecycle: subscriptionSvc,
		Metrics:   metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expire job", err)
		os.Exit(1)
	}
	invoiceJob, err := cron.NewInvoiceGenerationJob(cron.InvoiceGenerationJobParams{
		Logger:        logg,
		Subscriptions: subscriptionRepo,
		Payments:      paymentRepo,
		Billing:       billingSvc,
		Metrics:       metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice job", err)
		os.Exit(1)
	}
	purgeJob, err := cron.NewCompanyPurgeJob(cron.CompanyPurgeJobParams{
		Logger:        logg,
		DB:            dbClient,
		Companies:     companyRepo,
		Subscriptions: subscriptionRepo,
		Metrics:       metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purge job", err)
		os.Exit(1)
	}

	// Purge runs last so delete-eligibility sees the state the earlier
	// sweeps wrote in this cycle.
	registry := cron.NewRegistry(expireJob, invoiceJob, purgeJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Scheduler.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting billing worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "billing worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "billing worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
