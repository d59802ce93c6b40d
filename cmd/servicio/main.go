package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/config"
	"github.com/MarlonX-a/serverless/internal/consumer"
	"github.com/MarlonX-a/serverless/internal/database"
	"github.com/MarlonX-a/serverless/internal/dispatcher"
	"github.com/MarlonX-a/serverless/internal/events"
	"github.com/MarlonX-a/serverless/internal/handlers"
	"github.com/MarlonX-a/serverless/internal/logger"
	"github.com/MarlonX-a/serverless/internal/rabbitmq"
	"github.com/MarlonX-a/serverless/internal/repository"
	"github.com/MarlonX-a/serverless/internal/routes"
	"github.com/MarlonX-a/serverless/internal/service"
	"github.com/MarlonX-a/serverless/internal/signature"
	"github.com/MarlonX-a/serverless/internal/webhook"
	"github.com/MarlonX-a/serverless/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.LoadServicio()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	// Connect to PostgreSQL
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(&cfg.Database, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to RabbitMQ
	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, log)
	if err := rmq.Connect(context.Background()); err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	svc, err := service.NewService(context.Background(), db, log, rmq, cfg.Cache)
	if err != nil {
		log.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer svc.Close()

	servicios := repository.NewServicioRepository(db, svc.TxLedger)

	emitter := events.NewEmitter(rmq, cfg.EventsQueue, cfg.Webhook.Source, log)
	if err := emitter.Declare(); err != nil {
		log.Fatal("Failed to declare events queue", zap.Error(err))
	}

	signer, err := signature.NewSigner(cfg.Webhook.Secret)
	if err != nil {
		log.Fatal("Webhook signing is not configured", zap.Error(err))
	}
	webhooks, err := webhook.NewDispatcher(webhook.Config{
		URL:         cfg.Webhook.URL,
		BearerToken: cfg.Webhook.BearerToken,
		Timeout:     cfg.Webhook.Timeout,
		Source:      cfg.Webhook.Source,
		Environment: cfg.Webhook.Environment,
	}, signer, webhook.NewAttemptStore(db), log)
	if err != nil {
		log.Fatal("Failed to initialize webhook dispatcher", zap.Error(err))
	}

	// Answer validation requests and comentario notifications on the servicio queue
	runner := consumer.NewRunner(rmq, "servicio-ms", cfg.ServicioQueue, cfg.RabbitMQ.PrefetchCount,
		dispatcher.NewDispatcher(servicios, rmq, log), log)
	if err := runner.Start(); err != nil {
		log.Fatal("Failed to start servicio queue consumer", zap.Error(err))
	}

	wf := workflow.NewServicioWorkflow(svc.Ledger, servicios, emitter, webhooks, log)

	app := routes.NewApp("Servicio Service")
	routes.SetupServicioRoutes(app,
		handlers.NewHealthHandler(db, rmq),
		handlers.NewServicioHandler(wf, servicios, log),
	)

	// Start server in a goroutine
	go func() {
		addr := cfg.Server.Address()
		log.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}
	if err := runner.Stop(); err != nil {
		log.Error("Error stopping consumer", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Webhook.Timeout+5*time.Second)
	defer cancel()
	if err := webhooks.Wait(ctx); err != nil {
		log.Warn("Abandoning in-flight webhook deliveries", zap.Error(err))
	}

	log.Info("Server stopped")
}
