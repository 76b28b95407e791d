package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"StayEscrow/internal/config"
	"StayEscrow/internal/database"
	"StayEscrow/internal/events"
	"StayEscrow/internal/handlers"
	"StayEscrow/internal/repositories"
	"StayEscrow/internal/routes"
	"StayEscrow/internal/services"
)

const outboxMaxRetries = 10

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/default.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	appLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)
	slog.SetDefault(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	log.Println("Database connected and migrated successfully")

	// Booking locks: Redis when several instances share the database, in-process otherwise
	var locker services.Locker = services.NewKeyedMutex()
	if cfg.Redis.URL != "" {
		client, err := services.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer client.Close()
		locker = services.NewRedisLocker(client, cfg.Escrow.LockTTL)
		log.Println("Using Redis booking locks")
	}

	var publisher events.Publisher = events.NewLogPublisher(appLogger)
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		if err != nil {
			log.Fatal("Failed to create Kafka publisher:", err)
		}
		publisher = kp
		log.Printf("Publishing events to Kafka brokers %v", cfg.Kafka.Brokers)
	}
	defer publisher.Close()

	// Initialize services
	var mailer services.Mailer
	if cfg.Email.ResendAPIKey != "" {
		mailer = services.NewEmailService(cfg.Email.ResendAPIKey, cfg.Email.FromEmail)
	} else {
		log.Println("RESEND_API_KEY not set, e-mail delivery disabled")
	}

	var evidence services.EvidenceStore
	cld, err := services.NewCloudinaryService(
		cfg.Uploads.CloudinaryCloudName,
		cfg.Uploads.CloudinaryAPIKey,
		cfg.Uploads.CloudinaryAPISecret,
		cfg.Uploads.EvidenceFolder,
	)
	if err != nil {
		log.Printf("Cloudinary not configured, evidence uploads disabled: %v", err)
	} else {
		evidence = cld
		log.Println("Cloudinary service initialized successfully")
	}

	policy := services.ReleasePolicy{
		CoolingOff:   cfg.Escrow.CoolingOffPeriod,
		CheckoutHour: cfg.Escrow.CheckoutHour,
		Location:     cfg.Location(),
	}

	notifier := services.NewNotificationService(repositories.NewNotificationRepository(db), mailer, appLogger)
	settlement := services.NewSettlementService(db, locker, policy, notifier, appLogger)
	disputes := services.NewDisputeService(settlement, evidence, notifier, appLogger)
	bookings := services.NewBookingService(db)
	transactions := repositories.NewTransactionRepository(db)
	financials := services.NewFinancialsService(transactions, repositories.NewBookingRepository(db))

	autoRelease := services.NewAutoReleaseWorker(appLogger, repositories.NewBookingRepository(db), settlement,
		cfg.Escrow.SweepInterval, cfg.Escrow.SkipOpenDisputes)
	outbox := events.NewOutboxWorker(appLogger, repositories.NewOutboxRepository(db), publisher,
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, outboxMaxRetries)

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		if err := autoRelease.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("auto-release worker stopped", "error", err)
		}
	}()
	go func() {
		defer workers.Done()
		if err := outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("outbox worker stopped", "error", err)
		}
	}()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:   cfg.ServiceName,
		BodyLimit: cfg.BodyLimit,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg.ServiceName, cfg.JWTSecret, routes.Handlers{
		Listings:      handlers.NewListingHandler(bookings),
		Bookings:      handlers.NewBookingHandler(bookings, settlement, cfg.Location()),
		Disputes:      handlers.NewDisputeHandler(disputes),
		Notifications: handlers.NewNotificationHandler(repositories.NewNotificationRepository(db)),
		Admin:         handlers.NewAdminHandler(settlement, disputes, financials, transactions, autoRelease),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Error("server shutdown failed", "error", err)
		}
	}()

	log.Printf("%s server starting on http://localhost:%s", cfg.ServiceName, cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	stop()
	workers.Wait()
	log.Println("Shutdown complete")
}
