package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/internal/handlers"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/internal/utils"
	"github.com/sitetrack/backend/pkg/logger"
	"gorm.io/gorm"
)

const siteLockTTL = 30 * time.Second

// appServices holds the initialized services and handlers needed by the application.
type appServices struct {
	db        *gorm.DB
	queue     services.NotificationQueue
	worker    *services.Worker
	scheduler *services.MaintenanceScheduler
	redis     *redis.Client

	authHandler         *handlers.AuthHandler
	employeeHandler     *handlers.EmployeeHandler
	siteHandler         *handlers.SiteHandler
	phaseHandler        *handlers.PhaseHandler
	taskHandler         *handlers.TaskHandler
	notificationHandler *handlers.NotificationHandler
	systemLogHandler    *handlers.SystemLogHandler
	systemConfigHandler *handlers.SystemConfigHandler
	healthHandler       *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, queue, locks, services, schedulers.
func bootstrap(cfg *config.Config) (*appServices, error) {
	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, err
	}
	db := models.GetDB()

	if err := models.Migrate(db); err != nil {
		return nil, err
	}

	if err := models.SeedDefaultData(db, cfg.Admin, utils.HashPassword); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	services.InitSystemLogger(db)

	app := &appServices{db: db}

	// Notifications: async through asynq when Redis is enabled, inline otherwise
	notificationService := services.NewNotificationService(db, &cfg.Notifications)
	app.queue = services.InitNotificationQueue(cfg, notificationService.Persist)
	if app.queue.IsAsync() {
		app.worker = services.NewWorker(&cfg.Redis)
		if app.worker != nil {
			app.worker.SetProcessor(notificationService.Persist)
			if err := app.worker.Start(); err != nil {
				return nil, err
			}
		}
	}

	locker := newLocker(cfg, app)
	workflow := services.NewWorkflow(db, locker, services.NewEmitter(app.queue))

	holidays := services.NewHolidayService()
	phaseService := services.NewPhaseService(workflow, services.NewPhaseSequencer())
	siteService := services.NewSiteService(db, locker, holidays, cfg.Schedule.HolidayCountry)
	taskService := services.NewTaskService(workflow)
	employeeService := services.NewEmployeeService(db)
	authService := services.NewAuthService(db, &cfg.JWT)

	app.scheduler = services.NewMaintenanceScheduler(db)
	if err := app.scheduler.Start(); err != nil {
		return nil, err
	}

	app.authHandler = handlers.NewAuthHandler(authService)
	app.employeeHandler = handlers.NewEmployeeHandler(employeeService)
	app.siteHandler = handlers.NewSiteHandler(siteService, phaseService)
	app.phaseHandler = handlers.NewPhaseHandler(phaseService)
	app.taskHandler = handlers.NewTaskHandler(taskService)
	app.notificationHandler = handlers.NewNotificationHandler(notificationService)
	app.systemLogHandler = handlers.NewSystemLogHandler(db)
	app.systemConfigHandler = handlers.NewSystemConfigHandler(db)
	app.healthHandler = handlers.NewHealthHandler()

	return app, nil
}

// newLocker shares site/phase locks across instances through Redis when it
// is reachable; a single instance uses in-process locks.
func newLocker(cfg *config.Config, app *appServices) services.Locker {
	if !cfg.Redis.Enabled {
		return services.NewLocalLocker()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using in-process locks")
		_ = rdb.Close()
		return services.NewLocalLocker()
	}

	app.redis = rdb
	logger.Infof("Distributed locks enabled with Redis at %s", cfg.Redis.Addr)
	return services.NewRedisLocker(rdb, siteLockTTL)
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close notification queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
