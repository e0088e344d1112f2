// Server runs the auth service: the HTTP auth API, the gRPC health service and the consumer that
// finalizes registrations reported by the account service.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credential-lifecycle/backend/internal/config"
	"credential-lifecycle/backend/internal/contracts"
	"credential-lifecycle/backend/internal/db"
	"credential-lifecycle/backend/internal/escrow"
	healthhandler "credential-lifecycle/backend/internal/health/handler"
	identityrepo "credential-lifecycle/backend/internal/identity/repository"
	"credential-lifecycle/backend/internal/kvstore"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/messaging"
	"credential-lifecycle/backend/internal/refreshtoken"
	"credential-lifecycle/backend/internal/registration"
	"credential-lifecycle/backend/internal/revocation"
	"credential-lifecycle/backend/internal/security"
	"credential-lifecycle/backend/internal/server"
	sessionservice "credential-lifecycle/backend/internal/session/service"
	"credential-lifecycle/backend/internal/telemetry"
	telemetryotel "credential-lifecycle/backend/internal/telemetry/otel"
	"credential-lifecycle/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateAuthService(); err != nil {
		log.Fatal(err)
	}
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel).With("service", cfg.ServiceName, "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	kv, err := kvstore.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer kv.Close()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	broker, err := messaging.Dial(cfg.RabbitMQURL, logger)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer broker.Close()
	if err := broker.Declare(messaging.AuthServiceTopology); err != nil {
		log.Fatalf("rabbitmq declare: %v", err)
	}

	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	signer, err := security.NewTokenSigner(priv, pub)
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}
	logger.Info(ctx, "token signer ready", "alg", signer.Algorithm())

	var emitter telemetry.EventEmitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	if kafkaProducer != nil {
		emitter = telemetry.Fanout(emitter, kafkaProducer)
		defer kafkaProducer.Close()
	}

	identities := identityrepo.NewPostgresRepository(sqlDB)
	hasher := security.NewHasher(cfg.BcryptCost)
	registry := revocation.NewRegistry(kv, signer,
		revocation.WithEnabled(cfg.TokenBlacklistEnabled),
		revocation.WithLogger(logger),
	)
	refresh := refreshtoken.NewStore(kv, cfg.RefreshTokenExpireDays, logger)

	saga, err := registration.New(escrow.New(kv, logger), identities, hasher, broker,
		registration.WithEscrowTTL(cfg.EscrowTTL()),
		registration.WithEmitter(emitter),
		registration.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("registration: %v", err)
	}
	sessions := sessionservice.NewCoordinator(identities, hasher, signer, registry, refresh, cfg.AccessTTL(), emitter, logger)

	health := healthhandler.NewServer(map[string]healthhandler.Pinger{
		"redis":    kv,
		"postgres": healthhandler.PingFunc(sqlDB.PingContext),
		"rabbitmq": broker,
	}, logger)

	app := server.NewHTTPApp(server.HTTPDeps{Sessions: sessions, Registrar: saga, Health: health, Log: logger})
	grpcServer := server.NewGRPCServer(server.Deps{Health: health})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		logger.Info(ctx, "gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("http serve: %v", err)
		}
	}()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := broker.Consume(ctx, contracts.QueueAuthUserCreation, saga.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "completion consumer stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx := context.Background()
	logger.Info(shutdownCtx, "shutting down auth service")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error(shutdownCtx, "http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	<-consumerDone

	// Let in-flight async security events finish before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	otelCtx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(otelCtx); err != nil {
		logger.Error(shutdownCtx, "otel shutdown", "error", err)
	}
	logger.Info(shutdownCtx, "auth service stopped")
}
