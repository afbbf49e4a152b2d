package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/confhub/confbot/config"
	"github.com/confhub/confbot/internal/adapter/nlquery"
	"github.com/confhub/confbot/internal/adapter/summarizer"
	"github.com/confhub/confbot/internal/notify"
	"github.com/confhub/confbot/internal/render"
	store "github.com/confhub/confbot/internal/repository"
	"github.com/confhub/confbot/internal/service"
	"github.com/confhub/confbot/internal/session"
	"github.com/confhub/confbot/internal/transport/chat"
	"github.com/confhub/confbot/policy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting confbot...")
	log.Printf("WebSocket port: %d", cfg.WSPort)
	log.Printf("Database: %s", cfg.DatabaseURL)

	db, err := openStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	summarizerClient := summarizer.NewClient(cfg.SummarizerURL, cfg.SummarizerAPIKey, cfg.SummarizerModel, cfg.SummarizerTimeout)
	nlClient := nlquery.NewClient(cfg.NLQueryURL, cfg.NLQueryAPIKey, cfg.NLQueryTimeout)

	sessions := session.NewStore()
	updates := session.NewUpdateCache()
	formatter := render.NewFormatter(db, summarizerClient)
	svc := service.New(db, sessions, updates, formatter, nlClient)

	hub := chat.NewHub()
	dispatcher := chat.NewDispatcher(svc, hub, cfg.NewEventsViewWindow,
		chat.NewLoggingMiddleware(db),
		chat.NewAntiFloodMiddleware(),
		chat.NewPolicyMiddleware(policyEngine, cfg.AdminChats),
	)
	wsServer := chat.NewServer(chat.ServerConfig{
		MaxMessageSize: cfg.MaxMessageSize,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
	}, hub, dispatcher)

	notifier := notify.New(db, updates, hub, cfg.NewEventsWindow, cfg.UpdatedEventsWindow)
	runner, err := notify.NewRunner(notifier, cfg.NewEventsInterval, cfg.UpdatedEventsInterval)
	if err != nil {
		log.Fatalf("Failed to schedule notification cycles: %v", err)
	}
	runner.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.GET("/ws", wsServer.HandleWebSocket)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"connections": hub.ConnectionCount(),
		})
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.WSPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("WebSocket server started on port %d", cfg.WSPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down confbot...")

	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Confbot stopped")
}

// openStore picks the backend from the DSN: postgres:// selects the
// Postgres store, everything else is treated as a SQLite path.
func openStore(dsn string) (store.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return store.NewPostgresStore(ctx, dsn)
	}
	return store.NewSQLiteStore(dsn)
}
