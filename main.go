package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"clinic-booking/cmd"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/data/repository/memory"
	"clinic-booking/internal/usecase"
	"clinic-booking/internal/wire"
	"clinic-booking/internal/worker"
	"clinic-booking/pkg/database"
	"clinic-booking/pkg/lock"
	"clinic-booking/pkg/messaging"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/hibiken/asynq"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("storage", config.App.StorageDriver),
		zap.Bool("redis", config.Redis.Enabled),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	checks := make(map[string]wire.Check)

	// Storage
	var repos *repository.Repository
	switch config.App.StorageDriver {
	case "memory":
		logger.Warn("Using in-memory storage, data is lost on restart")
		repos = memory.New()
	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := database.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Database connected successfully")

		repos = repository.NewRepository(db, logger)
		checks["database"] = db.Ping
	}

	// Clinic schedules are read on every slot listing
	repos.Clinic = repository.NewCachedClinicRepository(repos.Clinic,
		gocache.New(config.Cache.TTL, config.Cache.CleanupInterval))

	deps := usecase.Dependencies{Metrics: m}

	// Redis backs the lock, the event channel and the retry queue. Without it
	// each falls back to an in-process implementation.
	var (
		asynqQueue  *worker.AsynqQueue
		asynqOpt    asynq.RedisClientOpt
		memoryQueue *worker.MemoryQueue
	)
	if config.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		broker := messaging.NewRedisBroker(client, logger)
		defer broker.Close()

		asynqOpt = asynq.RedisClientOpt{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		}
		asynqQueue = worker.NewAsynqQueue(asynqOpt, config.Retry, m, logger)
		defer asynqQueue.Close()

		deps.Locker = lock.NewRedisLocker(client, config.Lock.TTL, config.Lock.WaitTimeout, config.Lock.RetryInterval, logger)
		deps.Broker = broker
		deps.Queue = asynqQueue
	} else {
		memoryQueue = worker.NewMemoryQueue(config.Retry, m, logger)

		deps.Locker = lock.NewMemoryLocker(config.Lock.WaitTimeout)
		deps.Broker = messaging.NewMemoryBroker()
		deps.Queue = memoryQueue
	}

	// Wire all dependencies
	app := wire.Wiring(repos, config, wire.Options{
		Deps:     deps,
		Gatherer: registry,
		Checks:   checks,
	}, logger)

	// Retry worker
	if asynqQueue != nil {
		srv := worker.NewServer(asynqOpt, app.Service.Booking, m, logger)
		if err := srv.Start(); err != nil {
			logger.Fatal("Failed to start retry worker", zap.Error(err))
		}
		defer srv.Shutdown()
	} else {
		memoryQueue.Bind(app.Service.Booking)
		go memoryQueue.Run(ctx)
	}

	reconciler := worker.NewReconciler(repos.Booking, deps.Queue, config.Retry, logger)
	go reconciler.Run(ctx)

	// Start server
	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
