package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	api "notification-relay/cmd/api"
	authUsecase "notification-relay/internal/auth/usecase"
	deviceRepo "notification-relay/internal/device/repository"
	deviceUsecase "notification-relay/internal/device/usecase"
	notificationRepo "notification-relay/internal/notification/repository"
	notificationUsecase "notification-relay/internal/notification/usecase"
	userRepo "notification-relay/internal/user/repository"
	userUsecase "notification-relay/internal/user/usecase"
	"notification-relay/pkg/config"
	"notification-relay/pkg/database"
	"notification-relay/pkg/fcm"
	"notification-relay/pkg/logger"
	"notification-relay/pkg/queue"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("Relay exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Initialize database
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Initialize queue transport
	var queueOpts []option.ClientOption
	if cfg.Queue.CredentialsFile != "" {
		queueOpts = append(queueOpts, option.WithCredentialsFile(cfg.Queue.CredentialsFile))
	}
	transport := queue.New(queue.NewClientFactory(cfg.Queue.ProjectID, queueOpts...), queue.Config{
		Prefetch:          cfg.Queue.Prefetch,
		AckDeadline:       cfg.Queue.AckDeadline,
		PublishRetries:    cfg.Queue.PublishRetries,
		RetryBaseDelay:    cfg.Queue.RetryBaseDelay,
		BufferedByteLimit: cfg.Queue.BufferedByteLimit,
		DeadLetterTopic:   cfg.Queue.DeadLetterTopic,
	}, log)
	defer func() {
		if err := transport.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close queue transport")
		}
	}()

	if err := transport.DeclareQueue(ctx, cfg.Queue.QueueName); err != nil {
		return err
	}
	if err := transport.DeclareExchange(ctx, cfg.Queue.EventsExchange, queue.ExchangeTopic); err != nil {
		return err
	}

	// Initialize FCM client
	fcmClient, err := fcm.NewClient(ctx, fcm.Config{
		CredentialsFile: cfg.Firebase.CredentialsFile,
		ProjectID:       cfg.Firebase.ProjectID,
		SendTimeout:     cfg.Firebase.SendTimeout,
	}, log)
	if err != nil {
		return err
	}

	// Initialize repositories (dependency injection)
	users := userRepo.NewGormUserRepository(db)
	devices := deviceRepo.NewGormDeviceRepository(db)
	notifications := notificationRepo.NewGormNotificationRepository(db)
	jobs := notificationRepo.NewGormFcmJobRepository(db)

	var wg sync.WaitGroup

	var (
		consumer     *notificationUsecase.Consumer
		consumerDone <-chan struct{}
	)
	if cfg.RunsWorker() {
		consumer = notificationUsecase.NewConsumer(transport, transport, fcmClient, devices, notifications, jobs, notificationUsecase.ConsumerConfig{
			QueueName:      cfg.Queue.QueueName,
			EventsExchange: cfg.Queue.EventsExchange,
			JobTracking:    cfg.JobTracking,
		}, log)
		consumer.Start(ctx)
		consumerDone = consumer.Done()

		audit := notificationUsecase.NewDoneEventLogger(transport, cfg.Queue.EventsExchange, "", log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := audit.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Done event subscriber stopped")
			}
		}()
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.RunsAPI() {
		handler := api.NewHandler(api.Usecases{
			Auth:   authUsecase.NewAuthUsecase(users, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry),
			User:   userUsecase.NewUserUsecase(users),
			Device: deviceUsecase.NewDeviceUsecase(devices, users, cfg.UserScoped),
			Notification: notificationUsecase.NewNotificationUsecase(devices, users, notifications, jobs, transport, fcmClient, notificationUsecase.Config{
				QueueName:   cfg.Queue.QueueName,
				UserScoped:  cfg.UserScoped,
				JobTracking: cfg.JobTracking,
			}, log),
		}, pinger(db), cfg, log)

		server = handler.Server(":" + cfg.Port)
		go func() {
			log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	log.Info().Str("run_mode", cfg.RunMode).Msg("Notification relay started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("HTTP server failed")
	case <-consumerDone:
		if ctx.Err() == nil {
			runErr = consumer.Err()
			if runErr == nil {
				runErr = errors.New("consumer stopped unexpectedly")
			}
			log.Error().Err(runErr).Msg("Consumer exited")
		}
	}

	// Also ends the audit subscriber when shutdown was not signal-driven.
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
		}
	}
	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Consumer did not stop in time")
		}
	}
	wg.Wait()

	log.Info().Msg("Notification relay stopped")
	return runErr
}

func pinger(db *gorm.DB) api.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
