package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/joao-fontenele/quickserve/internal/config"
	"github.com/joao-fontenele/quickserve/internal/domain"
	"github.com/joao-fontenele/quickserve/internal/inventory"
	"github.com/joao-fontenele/quickserve/internal/messaging"
	"github.com/joao-fontenele/quickserve/internal/orders"
	"github.com/joao-fontenele/quickserve/internal/realtime"
	"github.com/joao-fontenele/quickserve/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadOrders()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	transitions, err := config.LoadTransitions(cfg.TransitionsFile)
	if err != nil {
		logger.Error("failed to load transitions", "error", err)
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.SaveOrders || cfg.InventoryBackend == config.BackendPostgres {
		db, err = telemetry.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
	}

	store, tables, err := openStore(cfg, db)
	if err != nil {
		logger.Error("failed to set up order store", "error", err)
		os.Exit(1)
	}
	if !store.Persistent() {
		logger.Warn("SAVE_ORDERS is not true, orders will not be persisted")
	}

	ledger, closeLedger, err := openLedger(ctx, cfg, db)
	if err != nil {
		logger.Error("failed to set up inventory ledger", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	hub := realtime.NewHub(logger, realtime.WithOriginCheck(allowOrigin(cfg.AllowedOrigins)))
	defer hub.Close()
	sinks := []realtime.Sink{hub}

	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		defer func() { _ = producer.Close() }()
		sinks = append(sinks, realtime.NewBrokerSink("kafka", producer))
	}

	if cfg.AMQPURL != "" {
		publisher, err := messaging.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer func() { _ = publisher.Close() }()
		sinks = append(sinks, realtime.NewBrokerSink("amqp", publisher))
	}

	fanout := realtime.NewFanout(logger, sinks...)

	service := orders.NewService(store, ledger, tables, fanout, logger,
		orders.WithTransitions(transitions),
		orders.WithReleaseOnCancel(cfg.ReleaseOnCancel),
	)
	handler := orders.NewHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteTag)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Order-Persisted"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/ws", hub.ServeWS)
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     telemetry.HTTPHandler(r, "orders"),
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port, "persistent", store.Persistent(),
			"inventory_backend", cfg.InventoryBackend, "sinks", len(sinks))
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

// openStore picks the order store and the table directory. Tables come from
// postgres whenever a database is configured.
func openStore(cfg config.Orders, db *sql.DB) (orders.Store, orders.TableFinder, error) {
	var tables orders.TableFinder
	switch {
	case db != nil:
		tables = orders.NewTableRepository(db)
	case cfg.TablesFile != "":
		list, err := config.LoadTables(cfg.TablesFile)
		if err != nil {
			return nil, nil, err
		}
		tables = orders.NewTableDirectory(list...)
	default:
		tables = orders.NewTableDirectory()
	}

	if !cfg.SaveOrders {
		return orders.NewDisabledStore(), tables, nil
	}
	return orders.NewOrderRepository(db), tables, nil
}

func openLedger(ctx context.Context, cfg config.Orders, db *sql.DB) (inventory.Ledger, func(), error) {
	noop := func() {}
	switch cfg.InventoryBackend {
	case config.BackendPostgres:
		return inventory.NewInventoryRepository(db), noop, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		ledger := inventory.NewRedisLedger(client)
		if err := seedRedis(ctx, ledger, cfg.MenuFile); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return ledger, func() { _ = client.Close() }, nil
	case config.BackendMemory:
		items, err := loadMenu(cfg.MenuFile)
		if err != nil {
			return nil, nil, err
		}
		return inventory.NewMemoryLedger(items...), noop, nil
	}

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: telemetry.HTTPClientTransport(),
	}
	return inventory.NewClient(cfg.InventoryServiceURL, client), noop, nil
}

func loadMenu(path string) ([]domain.MenuItem, error) {
	if path == "" {
		return nil, nil
	}
	return config.LoadMenu(path)
}

func seedRedis(ctx context.Context, ledger *inventory.RedisLedger, menuFile string) error {
	items, err := loadMenu(menuFile)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := ledger.Put(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// allowOrigin accepts socket upgrades from the configured origins, or from
// any origin when none are configured.
func allowOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
