// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atsumaru-app/warikan/internal/config"
	"github.com/atsumaru-app/warikan/internal/database"
	"github.com/atsumaru-app/warikan/internal/handler"
	"github.com/atsumaru-app/warikan/internal/repository"
	"github.com/atsumaru-app/warikan/internal/service"
	"github.com/atsumaru-app/warikan/pkg/logging"
)

func main() {
	configFile := flag.String("config", "", "path to configuration file (default config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level)

	ctx := context.Background()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.PostgreSQL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		slog.Error("database migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL", "host", cfg.PostgreSQL.Host, "db", cfg.PostgreSQL.DBName)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	eventRepo := repository.NewEventRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	pollRepo := repository.NewPollRepository(pool)
	expenseRepo := repository.NewExpenseRepository(pool)
	eventSvc := service.NewEventService(eventRepo, participantRepo, pollRepo, expenseRepo)
	eventHandler := handler.NewEventHandler(eventSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.Metrics)         // prometheus request metrics
	r.Use(handler.CORS)            // permissive CORS for browser clients

	// Health and metrics
	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/events", func(r chi.Router) {
		r.Post("/", eventHandler.CreateEvent)
		r.Get("/", eventHandler.ListEvents)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", eventHandler.GetEvent)
			r.Post("/finalize", eventHandler.FinalizeDate)
			r.Post("/responses", eventHandler.SubmitPollResponse)
			r.Get("/responses", eventHandler.ListPollResponses)
			r.Post("/participants", eventHandler.AddParticipant)
			r.Get("/participants", eventHandler.ListParticipants)
			r.Patch("/participants/{name}", eventHandler.HideParticipant)
			r.Post("/expenses", eventHandler.RecordExpense)
			r.Get("/expenses", eventHandler.ListExpenses)
			r.Delete("/expenses/{expenseID}", eventHandler.DeleteExpense)
			r.Get("/settlements", eventHandler.GetSettlements)
		})
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		slog.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
