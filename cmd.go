package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vinotheque/internal/cache"
	"vinotheque/internal/config"
	"vinotheque/internal/database"
	"vinotheque/internal/repositories"
	"vinotheque/internal/server"
	"vinotheque/internal/services"
	"vinotheque/pkg/rabbitmq"

	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
	"gorm.io/gorm"
)

var envFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vinotheque",
		Short: "Vinotheque - wine storefront API",
		Long: `Vinotheque serves the wine catalog and customer accounts of the storefront.

Without a subcommand it behaves like "vinotheque serve".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional file of KEY=VALUE settings")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	})
	return root
}

// connect loads the configuration and opens the database, retrying while
// it comes up.
func connect(ctx context.Context) (*config.Config, *gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.ConnectWithRetry(ctx,
		database.OpenPostgres(cfg.DatabaseURL, !cfg.IsProduction()),
		cfg.DBConnectRetries, cfg.DBConnectDelay)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func runMigrate(ctx context.Context) error {
	_, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Println("Database schema is up to date")
	return nil
}

func runServe(ctx context.Context) error {
	cfg, db, err := connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Cache ---
	redisStore, err := cache.DialRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisStore.Close()
	if err := redisStore.Ping(context.Background()); err != nil {
		// Reads fall back to the database while Redis is away.
		log.Printf("Warning: Redis unreachable at startup: %v", err)
	}

	// --- Events ---
	var authOpts []services.AuthOption
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Printf("Warning: events disabled, RabbitMQ client failed: %v", err)
		} else {
			defer mqClient.Close()
			authOpts = append(authOpts, services.WithEventPublisher(mqClient))
			log.Println("Starting RabbitMQ consumer for user events...")
			if err := mqClient.ConsumeUserEvents(logUserEvent); err != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", err)
			}
		}
	}

	// --- Services ---
	catalog := services.NewCatalogService(repositories.NewGORMProductRepository(db), redisStore)
	auth := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWTSecret, authOpts...)

	app := server.New(server.Options{
		AllowOrigins: cfg.AllowOrigins,
		Verbose:      !cfg.IsProduction(),
		RequestLog:   true,
	}, catalog, auth)

	log.Printf("Starting server on %s (%s)", cfg.ListenAddr(), cfg.Env)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
	return nil
}

// logUserEvent records user events; messages it cannot decode are rejected.
func logUserEvent(msg amqp.Delivery) error {
	switch msg.RoutingKey {
	case services.UserRegisteredEvent:
		var event services.UserRegistered
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("invalid %s payload: %w", msg.RoutingKey, err)
		}
		log.Printf("User registered: %s <%s> at %s", event.UserID, event.Email, event.OccurredAt.Format(time.RFC3339))
	default:
		log.Printf("Ignoring user event %q (tag %d)", msg.RoutingKey, msg.DeliveryTag)
	}
	return nil
}
