package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paygate/internal/app/orders"
	"paygate/internal/app/payments"
	"paygate/internal/app/webhooks"
	"paygate/internal/config"
	kafka_handler "paygate/internal/handler/kafka"
	authmw "paygate/internal/handler/http/middleware"
	orders_http "paygate/internal/handler/http/orders"
	payments_http "paygate/internal/handler/http/payments"
	webhooks_http "paygate/internal/handler/http/webhooks"
	"paygate/internal/infrastructure/database"
	kafka_infra "paygate/internal/infrastructure/kafka"
	"paygate/internal/outbox"
	"paygate/internal/repository/order_repo"
	"paygate/internal/repository/outbox_repo"
	"paygate/internal/repository/payment_repo"
	"paygate/internal/repository/webhook_repo"
	"paygate/internal/settlement"
	"paygate/internal/webhook"
)

func ensureKafkaTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if err == kafka.TopicAlreadyExists {
			logger.Info("Kafka topics already exist, skipping creation.")
		} else {
			return fmt.Errorf("failed to create kafka topics: %w", err)
		}
	} else {
		logger.Info("Kafka topics ensured.", zap.Strings("topics", topics))
	}
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Payment gateway starting...")

	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Connected to PostgreSQL.")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}
	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed.")

	kafkaBrokers := cfg.GetKafkaBrokers()
	topicCtx, topicCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = ensureKafkaTopics(topicCtx, kafkaBrokers, []string{cfg.KafkaPaymentEventTopic}, appLogger)
	topicCancel()
	if err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	orderRepository := order_repo.NewOrderRepository()
	paymentRepository := payment_repo.NewPaymentRepository()
	webhookRepository := webhook_repo.NewWebhookRepository()
	outboxRepository := outbox_repo.NewOutboxRepository()

	orderService := orders.NewOrderService(db, orderRepository,
		appLogger.With(zap.String("component", "OrderService")))
	paymentService := payments.NewPaymentService(db, orderRepository, paymentRepository,
		appLogger.With(zap.String("component", "PaymentService")))

	dispatcher := webhook.NewDispatcher(db, webhookRepository,
		cfg.WebhookTimeout, cfg.WebhookMaxAttempts, cfg.WebhookRetryBackoff,
		appLogger.With(zap.String("component", "WebhookDispatcher")))
	webhookService := webhooks.NewWebhookService(db, webhookRepository, dispatcher,
		appLogger.With(zap.String("component", "WebhookService")))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Key", "X-Api-Secret", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Payment gateway is healthy!"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.APIKeyAuth(cfg.APIKey, cfg.APISecret))
		orders_http.RegisterRoutes(r, orderService, appLogger)
		payments_http.RegisterRoutes(r, paymentService, appLogger)
		webhooks_http.RegisterRoutes(r, webhookService, appLogger)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	kafkaProducer := kafka_infra.NewProducer(kafkaBrokers, cfg.KafkaPaymentEventTopic,
		appLogger.With(zap.String("component", "KafkaProducer")))
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	outboxProcessor := outbox.NewProcessor(db, outboxRepository, kafkaProducer,
		cfg.OutboxPollInterval, cfg.OutboxPollTimeout,
		appLogger.With(zap.String("component", "OutboxProcessor")))

	settlementProcessor := settlement.NewProcessor(db, paymentRepository, orderRepository, outboxRepository,
		cfg.KafkaPaymentEventTopic, cfg.SettlementInterval, cfg.SettlementDelay,
		appLogger.With(zap.String("component", "SettlementProcessor")))

	paymentEventConsumer := kafka_infra.NewConsumer(kafkaBrokers, cfg.KafkaConsumerGroup, cfg.KafkaPaymentEventTopic,
		appLogger.With(zap.String("component", "PaymentEventConsumer")))
	paymentEventHandler := kafka_handler.PaymentEventMessageHandler(dispatcher,
		appLogger.With(zap.String("component", "PaymentEventHandler")))

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go outboxProcessor.Start(ctxMain)
	go settlementProcessor.Start(ctxMain)
	go dispatcher.StartRetryLoop(ctxMain, cfg.WebhookRetryPoll)

	go func() {
		if err := paymentEventConsumer.Start(ctxMain, paymentEventHandler); err != nil {
			if err != context.Canceled && err != context.DeadlineExceeded && err != kafka.ErrGroupClosed {
				appLogger.Error("Payment event consumer failed", zap.Error(err))
			}
		}
		appLogger.Info("Payment event consumer stopped.")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	paymentEventConsumer.Stop()

	appLogger.Info("Application gracefully shut down.")
}
