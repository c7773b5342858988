package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xelth-com/eckvideo/internal/config"
	"github.com/xelth-com/eckvideo/internal/database"
	apihandlers "github.com/xelth-com/eckvideo/internal/handlers"
	"github.com/xelth-com/eckvideo/internal/metrics"
	"github.com/xelth-com/eckvideo/internal/repository/gormrepo"
	"github.com/xelth-com/eckvideo/internal/repository/memrepo"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
	"github.com/xelth-com/eckvideo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to load governance policy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := policy.Watch(ctx); err != nil {
		log.Printf("⚠️  Policy hot reload disabled: %v", err)
	}

	// 2. Select the store (embedded or external PostgreSQL, or in-memory for demos)
	var (
		store   assignment.Store
		workers apihandlers.WorkerDirectory
		db      *database.DB
	)
	switch cfg.Store {
	case config.StoreMemory:
		log.Println("🧪 Mode: [In-memory store] - data is lost on exit")
		store = memrepo.New()
		workers = memrepo.NewWorkers()
	default:
		db, err = database.Connect(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		log.Println("🚀 Synchronizing database schema...")
		if err := database.Migrate(db.DB); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
		log.Println("✅ Schema synchronized successfully")
		store = gormrepo.New(db.DB)
		workers = gormrepo.NewWorkers(db.DB)
	}

	// 3. Assignment engine
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheus(registry, cfg.Metrics.Namespace)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	workload := assignment.NewWorkloadGovernor(store)
	quota := assignment.NewQuotaLimiter(store, policy, nil, cfg.Governance.QuotaTimeZone)
	coordinator := assignment.NewCoordinator(store, workload, quota, assignment.Options{
		Notifier: hub,
		Metrics:  collector,
	})
	reclaimer := assignment.NewReclaimer(coordinator, policy, policy.SweepInterval())
	reclaimer.Start(ctx)

	// 4. HTTP router
	router := apihandlers.NewRouter(apihandlers.Deps{
		Coordinator: coordinator,
		Workload:    workload,
		Quota:       quota,
		Reclaimer:   reclaimer,
		Workers:     workers,
		Hub:         hub,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:   cfg.JWTSecret,
		TokenTTL:    cfg.TokenTTL,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.LoggingHandler(os.Stdout, router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Start server with graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("🚀 Assignment service (%s) starting on port %s", cfg.Env, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("⚠️  Received signal: %v. Shutting down gracefully...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	reclaimer.Stop()
	cancel()

	if db != nil {
		log.Println("🛑 Closing database connection...")
		if err := db.Close(); err != nil {
			log.Printf("Database close error: %v", err)
		}
	}

	log.Println("✅ Shutdown complete")
}
