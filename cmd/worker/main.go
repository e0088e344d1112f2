// Worker runs the account service: it consumes creation requests from user_creation_queue, creates
// accounts in ACCOUNT_DATABASE_URL and reports each one back to the auth service.
// Set ACCOUNT_DATABASE_URL and RABBITMQ_URL.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credential-lifecycle/backend/internal/config"
	"credential-lifecycle/backend/internal/contracts"
	"credential-lifecycle/backend/internal/db"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/messaging"
	telemetryotel "credential-lifecycle/backend/internal/telemetry/otel"
	userrepo "credential-lifecycle/backend/internal/user/repository"
	userservice "credential-lifecycle/backend/internal/user/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateAccountService(); err != nil {
		log.Fatal(err)
	}
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel).With("service", "account-service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "account-service",
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	sqlDB, err := db.Open(cfg.AccountDatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	broker, err := messaging.Dial(cfg.RabbitMQURL, logger)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer broker.Close()
	if err := broker.Declare(messaging.AccountServiceTopology); err != nil {
		log.Fatalf("rabbitmq declare: %v", err)
	}

	provisioner := userservice.NewProvisioner(userrepo.NewPostgresRepository(sqlDB), broker, logger)

	logger.Info(ctx, "worker: consuming creation requests", "queue", contracts.QueueUserCreation)
	if err := broker.Consume(ctx, contracts.QueueUserCreation, provisioner.HandleRequested); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "worker: consumer stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "otel shutdown", "error", err)
	}
	logger.Info(shutdownCtx, "worker: stopped")
}
