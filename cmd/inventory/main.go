package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/quickserve/internal/config"
	"github.com/joao-fontenele/quickserve/internal/inventory"
	"github.com/joao-fontenele/quickserve/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadInventory()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "inventory", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("inventory", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up inventory store", "error", err, "backend", cfg.Backend)
		os.Exit(1)
	}
	defer closeStore()

	handler := inventory.NewHandler(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteTag)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.HTTPHandler(r, "inventory"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting inventory service", "port", cfg.Port, "backend", cfg.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Inventory) (inventory.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		ledger := inventory.NewRedisLedger(client)
		if cfg.MenuFile != "" {
			items, err := config.LoadMenu(cfg.MenuFile)
			if err != nil {
				_ = client.Close()
				return nil, nil, err
			}
			for _, item := range items {
				if err := ledger.Put(ctx, item); err != nil {
					_ = client.Close()
					return nil, nil, err
				}
			}
		}
		return ledger, func() { _ = client.Close() }, nil
	case config.BackendMemory:
		if cfg.MenuFile == "" {
			return inventory.NewMemoryLedger(), func() {}, nil
		}
		items, err := config.LoadMenu(cfg.MenuFile)
		if err != nil {
			return nil, nil, err
		}
		return inventory.NewMemoryLedger(items...), func() {}, nil
	}

	db, err := telemetry.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	return inventory.NewInventoryRepository(db), func() { _ = db.Close() }, nil
}
