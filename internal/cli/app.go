// Package cli wires the application and exposes it as cobra commands.
package cli

import (
	"context"
	"fmt"
	"time"

	"clinic-app-server/internal/cache"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/notify"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	loc       *time.Location
	db        *gorm.DB
	redis     *redis.Client
	avatars   storage.AvatarStore
	publisher notify.Publisher

	pricing      *services.PricingResolver
	schedules    *services.ScheduleService
	slots        *services.SlotService
	appointments *services.AppointmentService
	billing      *services.BillingService
	reports      *services.ReportService
	chatbot      *services.ChatbotService
}

// newApp loads configuration, opens the database and builds the services.
// Redis, MinIO and RabbitMQ are optional and skipped when not configured.
// withServices=false stops after the database for commands that only migrate.
func newApp(ctx context.Context, withServices bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	loc, err := cfg.Clinic.Location()
	if err != nil {
		log.Warn("falling back to local time zone", zap.Error(err))
	}

	db, err := models.Open(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, log: log, loc: loc, db: db, publisher: notify.NopPublisher{}}
	if !withServices {
		return a, nil
	}

	var feeCache services.FeeCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, rank fees are read from the database", zap.Error(err))
		} else {
			a.redis = client
			feeCache = cache.NewRankFeeCache(client, cfg.Redis.FeeTTL)
		}
	}

	if cfg.Minio.Endpoint != "" {
		store, err := storage.NewMinioStore(ctx, cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
			cfg.Minio.Bucket, cfg.Minio.UseSSL, cfg.Minio.URLExpiry)
		if err != nil {
			log.Warn("object storage unavailable, avatar upload disabled", zap.Error(err))
		} else {
			a.avatars = store
		}
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := notify.DialRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Warn("rabbitmq unavailable, domain events are dropped", zap.Error(err))
		} else {
			a.publisher = publisher
		}
	}

	a.pricing = services.NewPricingResolver(db, feeCache, log)
	a.schedules = services.NewScheduleService(db, loc, log)
	a.slots = services.NewSlotService(db, loc, nil)
	a.appointments = services.NewAppointmentService(db, a.slots, a.pricing, a.publisher, log, services.AppointmentConfig{
		Location:          loc,
		BookingWindowDays: cfg.Clinic.BookingWindowDays,
		CancelBefore:      time.Duration(cfg.Clinic.CancelBeforeMinutes) * time.Minute,
	})
	a.billing = services.NewBillingService(db, a.pricing, a.publisher, log, nil)
	a.reports = services.NewReportService(db, loc, nil)
	a.chatbot = services.NewChatbotService(db, log, nil)
	return a, nil
}

// close releases the connections opened by newApp.
func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("close publisher", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
