package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitecraft/sitegen-backend/internal/application"
	"github.com/sitecraft/sitegen-backend/internal/application/commands"
	"github.com/sitecraft/sitegen-backend/internal/application/processors"
	"github.com/sitecraft/sitegen-backend/internal/application/query"
	builderclient "github.com/sitecraft/sitegen-backend/internal/infra/client/builder"
	ai "github.com/sitecraft/sitegen-backend/internal/infra/client/openai"
	"github.com/sitecraft/sitegen-backend/internal/presentation/rest"
	"github.com/sitecraft/sitegen-backend/internal/presentation/scheduler"
	"github.com/sitecraft/sitegen-backend/pkg/db"
	"github.com/sitecraft/sitegen-backend/pkg/env"
)

func Init() {
	// DB
	dbConfig := db.NewConfig()
	pool, err := pgxpool.New(context.Background(), dbConfig.GetDSN())
	if err != nil {
		log.Panicf("failed to create pool: %v", err)
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Panicf("failed to connect to db: %v", err)
	}
	uowFactory := db.NewUoWFactory(pool)

	// Configs
	builderConfig := builderclient.NewBuilderConfig()
	paymentConfig := commands.NewPaymentConfig()
	outboxConfig := scheduler.NewOutboxConfig()

	// Clients
	builderAPI := builderclient.NewBuilderClient(builderConfig)
	aiClient := ai.NewOpenAIClient(ai.NewOpenAIConfig())

	handlers := &application.Handlers{
		CreateSite:        commands.NewCreateSite(uowFactory),
		RequestGeneration: commands.NewRequestGeneration(uowFactory),
		EnrichContent:     commands.NewEnrichContent(uowFactory, aiClient),
		ReconcileStatus:   commands.NewReconcileStatus(uowFactory),
		Payment:           commands.NewPayment(uowFactory, commands.StripeGateway{}, paymentConfig),
		GetSite:           query.NewGetSite(uowFactory),
	}
	pipelines := &application.Processors{
		GenerateSite: processors.NewGenerateSite(uowFactory, builderAPI),
	}

	handler := rest.NewServer(handlers)
	app := fiber.New(fiber.Config{
		IdleTimeout: 5 * time.Second,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     env.GetEnv("CORS_ORIGIN", "http://localhost:3000"),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	rest.RegisterHandlers(app, handler)

	outboxPoller := scheduler.NewOutboxPoller(pipelines, uowFactory, outboxConfig)
	go outboxPoller.Start()

	go func() {
		if err := app.Listen(":8080"); err != nil {
			log.Panic(err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	fmt.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	outboxPoller.Stop()

	fmt.Println("Running cleanup tasks...")

	uowFactory.Pool.Close()
	fmt.Println("Fiber was successfully shutdown.")
}
