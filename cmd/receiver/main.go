package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/config"
	"github.com/MarlonX-a/serverless/internal/consumer"
	"github.com/MarlonX-a/serverless/internal/database"
	"github.com/MarlonX-a/serverless/internal/events"
	"github.com/MarlonX-a/serverless/internal/handlers"
	"github.com/MarlonX-a/serverless/internal/logger"
	"github.com/MarlonX-a/serverless/internal/notifier"
	"github.com/MarlonX-a/serverless/internal/rabbitmq"
	"github.com/MarlonX-a/serverless/internal/receiver"
	"github.com/MarlonX-a/serverless/internal/repository"
	"github.com/MarlonX-a/serverless/internal/routes"
	"github.com/MarlonX-a/serverless/internal/signature"
)

func main() {
	cfg, err := config.LoadReceiver()
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

	signer, err := signature.NewSigner(cfg.WebhookSecret)
	if err != nil {
		log.Fatal("Webhook verification is not configured", zap.Error(err))
	}

	forwarder := events.NewEmitter(rmq, cfg.NotificationsQueue, "webhook-receiver", log)
	if err := forwarder.Declare(); err != nil {
		log.Fatal("Failed to declare notifications queue", zap.Error(err))
	}

	webhookEvents := repository.NewWebhookEventRepository(db)
	rcv, err := receiver.New(signer, webhookEvents, forwarder, log)
	if err != nil {
		log.Fatal("Failed to initialize receiver", zap.Error(err))
	}

	templates, err := notifier.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		log.Fatal("Failed to load notification templates", zap.Error(err))
	}
	notifications := consumer.NewRunner(rmq, "notifier", cfg.NotificationsQueue, cfg.RabbitMQ.PrefetchCount,
		notifier.NewForwarder(templates, notifier.NewTelegramClient(cfg.Telegram), log), log)
	if err := notifications.Start(); err != nil {
		log.Fatal("Failed to start notification consumer", zap.Error(err))
	}

	app := routes.NewApp("Webhook Receiver")
	routes.SetupReceiverRoutes(app,
		handlers.NewHealthHandler(db, rmq),
		handlers.NewWebhookHandler(rcv, log),
		handlers.NewEventsHandler(webhookEvents, log),
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
	if err := notifications.Stop(); err != nil {
		log.Error("Error stopping notification consumer", zap.Error(err))
	}

	log.Info("Server stopped")
}
