package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/db"
	"github.com/fleetwatch-dev/fleetwatch/internal/acks"
	"github.com/fleetwatch-dev/fleetwatch/internal/attention"
	"github.com/fleetwatch-dev/fleetwatch/internal/auth"
	"github.com/fleetwatch-dev/fleetwatch/internal/delivery"
	"github.com/fleetwatch-dev/fleetwatch/internal/dispatch"
	"github.com/fleetwatch-dev/fleetwatch/internal/events"
	"github.com/fleetwatch-dev/fleetwatch/internal/flags"
	"github.com/fleetwatch-dev/fleetwatch/internal/handlers"
	"github.com/fleetwatch-dev/fleetwatch/internal/pipeline"
	"github.com/fleetwatch-dev/fleetwatch/internal/router"
	"github.com/fleetwatch-dev/fleetwatch/internal/scheduler"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env file not loaded: %v", err)
	}

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := auth.InitJWTSecret(); err != nil {
		logger.Fatal("JWT setup failed", zap.Error(err))
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL environment variable is not set")
	}

	if err := db.ConnectDatabase(dsn); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.MigrateDatabase(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
	} else {
		logger.Warn("REDIS_ADDR not set, running without flag cache and scheduler lease")
	}

	eventLog := events.NewLog(db.DB, logger)
	flagSvc := flags.NewService(db.DB, rdb, logger)
	sender := dispatch.NewLogSender(logger)
	dispatcher := dispatch.NewDispatcher(db.DB, eventLog, sender, logger)
	engine := attention.NewEngine(db.DB, eventLog, dispatcher, logger)
	tracker := delivery.NewTracker(db.DB, eventLog, logger)
	emergency := dispatch.NewLogEmergencyDispatcher(logger)
	correlator := acks.NewCorrelator(db.DB, eventLog, flagSvc, engine, emergency, logger)
	reprocessor := pipeline.NewLogReprocessor(logger)

	handlers.Configure(engine, correlator, tracker, eventLog, flagSvc, dispatcher, reprocessor, logger)

	sched := scheduler.NewScheduler(db.DB, rdb, engine, flagSvc, schedulerInterval(), logger)
	sched.Start()
	defer sched.Stop()

	r := router.NewRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
		logger.Info("PORT not set, defaulting to 3000")
	}

	if err := r.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func initLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_FORMAT") == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func schedulerInterval() time.Duration {
	seconds, err := strconv.Atoi(os.Getenv("SCHEDULER_INTERVAL"))
	if err != nil || seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}
