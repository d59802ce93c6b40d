package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/config"
	"github.com/MarlonX-a/serverless/internal/database"
	"github.com/MarlonX-a/serverless/internal/events"
	"github.com/MarlonX-a/serverless/internal/handlers"
	"github.com/MarlonX-a/serverless/internal/logger"
	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/rabbitmq"
	"github.com/MarlonX-a/serverless/internal/refvalidator"
	"github.com/MarlonX-a/serverless/internal/repository"
	"github.com/MarlonX-a/serverless/internal/routes"
	"github.com/MarlonX-a/serverless/internal/service"
	"github.com/MarlonX-a/serverless/internal/signature"
	"github.com/MarlonX-a/serverless/internal/webhook"
	"github.com/MarlonX-a/serverless/internal/workflow"
)

func main() {
	cfg, err := config.LoadComentario()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

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

	comentarios := repository.NewComentarioRepository(db, svc.TxLedger)

	rpc := rabbitmq.NewRPCClient(rmq, cfg.ServicioQueue, log)
	if err := rpc.Start(); err != nil {
		log.Fatal("Failed to start RPC client", zap.Error(err))
	}
	defer rpc.Stop()
	validator := refvalidator.New(rpc, cfg.ValidationTimeout, log, metrics.ReferenceValidation)

	// comentario.creado goes to the servicio queue, where the owner of the referenced servicio listens
	emitter := events.NewEmitter(rmq, cfg.ServicioQueue, cfg.Webhook.Source, log)
	if err := emitter.Declare(); err != nil {
		log.Fatal("Failed to declare servicio queue", zap.Error(err))
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

	wf := workflow.NewComentarioWorkflow(svc.Ledger, validator, comentarios, emitter, webhooks, log)

	app := routes.NewApp("Comentario Service")
	routes.SetupComentarioRoutes(app,
		handlers.NewHealthHandler(db, rmq),
		handlers.NewComentarioHandler(wf, comentarios, log),
	)

	go func() {
		addr := cfg.Server.Address()
		log.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Webhook.Timeout+5*time.Second)
	defer cancel()
	if err := webhooks.Wait(ctx); err != nil {
		log.Warn("Abandoning in-flight webhook deliveries", zap.Error(err))
	}

	log.Info("Server stopped")
}
