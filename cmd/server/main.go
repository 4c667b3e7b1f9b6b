package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/morgansundqvist/mbacklog/internal/adapters"
	"github.com/morgansundqvist/mbacklog/internal/application"
	"github.com/morgansundqvist/mbacklog/internal/config"
	"github.com/morgansundqvist/mbacklog/internal/domain"
	"github.com/morgansundqvist/mbacklog/internal/handlers"
	"github.com/morgansundqvist/mbacklog/internal/ports"
)

const sessionSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	repo := adapters.NewMemorySessionRepository(cfg.SessionTTL, sessionSweepInterval, slogger)
	defer repo.StopAutoExpire()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	llm := adapters.NewOpenAILLMService(adapters.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Models: map[domain.ModelType]string{
			domain.ModelTypeAdvanced: cfg.OpenAI.BacklogModel,
			domain.ModelTypeSimple:   cfg.OpenAI.ClarifyModel,
		},
	}, slogger)

	controller := application.NewSessionController(
		repo,
		application.NewBacklogService(llm, slogger),
		map[domain.Platform]ports.Tracker{
			domain.PlatformJira: adapters.NewJiraClient(httpClient, slogger),
			domain.PlatformADO:  adapters.NewAdoClient(httpClient, cfg.ExportWorkers, slogger),
		},
		adapters.NewCSVExporter(),
		adapters.NewHTMLMarkdownConverter(),
		application.SessionControllerConfig{
			ImportDismissAfter: cfg.ImportDismiss,
			Logger:             slogger,
		},
	)

	app := fiber.New(fiber.Config{BodyLimit: 16 << 20})

	app.Use(logger.New())

	api := app.Group("/api")

	sessionHandler := handlers.NewSessionHandler(controller)
	sessionHandler.Register(api)

	log.Printf("Starting server on http://localhost:%s\n", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
