package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendHTTP     = "http"
	BackendMemory   = "memory"
)

type Orders struct {
	Port                string
	PostgresURL         string
	SaveOrders          bool
	InventoryBackend    string
	InventoryServiceURL string
	RedisAddr           string
	MenuFile            string
	TablesFile          string
	KafkaBrokers        []string
	EventsTopic         string
	AMQPURL             string
	AMQPExchange        string
	AllowedOrigins      []string
	TransitionsFile     string
	ReleaseOnCancel     bool
}

// LoadOrders reads the orders service configuration from the environment.
func LoadOrders() (Orders, error) {
	cfg := Orders{
		Port:                getenv("PORT", "8081"),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		SaveOrders:          os.Getenv("SAVE_ORDERS") == "true",
		InventoryBackend:    getenv("INVENTORY_BACKEND", BackendHTTP),
		InventoryServiceURL: getenv("INVENTORY_SERVICE_URL", "http://localhost:8082"),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		MenuFile:            os.Getenv("MENU_FILE"),
		TablesFile:          os.Getenv("TABLES_FILE"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		EventsTopic:         getenv("EVENTS_TOPIC", "order.events"),
		AMQPURL:             os.Getenv("AMQP_URL"),
		AMQPExchange:        getenv("AMQP_EXCHANGE", "order_events_fanout"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
		TransitionsFile:     os.Getenv("TRANSITIONS_FILE"),
	}

	var err error
	if cfg.ReleaseOnCancel, err = parseBool("RELEASE_ON_CANCEL", false); err != nil {
		return cfg, err
	}

	if cfg.SaveOrders && cfg.PostgresURL == "" {
		return cfg, errors.New("POSTGRES_URL environment variable is required when SAVE_ORDERS=true")
	}
	if err := checkBackend(cfg.InventoryBackend, BackendHTTP, BackendPostgres, BackendRedis, BackendMemory); err != nil {
		return cfg, err
	}
	if cfg.InventoryBackend == BackendPostgres && cfg.PostgresURL == "" {
		return cfg, errors.New("POSTGRES_URL environment variable is required for the postgres inventory backend")
	}
	return cfg, nil
}

type Inventory struct {
	Port        string
	PostgresURL string
	Backend     string
	RedisAddr   string
	MenuFile    string
}

func LoadInventory() (Inventory, error) {
	cfg := Inventory{
		Port:        getenv("PORT", "8082"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		Backend:     getenv("INVENTORY_BACKEND", BackendPostgres),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		MenuFile:    os.Getenv("MENU_FILE"),
	}

	if err := checkBackend(cfg.Backend, BackendPostgres, BackendRedis, BackendMemory); err != nil {
		return cfg, err
	}
	if cfg.Backend == BackendPostgres && cfg.PostgresURL == "" {
		return cfg, errors.New("POSTGRES_URL environment variable is required")
	}
	return cfg, nil
}

type Gateway struct {
	Port                string
	OrdersServiceURL    string
	InventoryServiceURL string
	AllowedOrigins      []string
}

func LoadGateway() (Gateway, error) {
	cfg := Gateway{
		Port:                getenv("PORT", "8080"),
		OrdersServiceURL:    os.Getenv("ORDERS_SERVICE_URL"),
		InventoryServiceURL: os.Getenv("INVENTORY_SERVICE_URL"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
	if err := required("ORDERS_SERVICE_URL", cfg.OrdersServiceURL); err != nil {
		return cfg, err
	}
	if err := required("INVENTORY_SERVICE_URL", cfg.InventoryServiceURL); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type Notifier struct {
	KafkaBrokers     []string
	EventsTopic      string
	ConsumerGroup    string
	OrdersServiceURL string
	NotifyServiceURL string
}

func LoadNotifier() (Notifier, error) {
	cfg := Notifier{
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		EventsTopic:      getenv("EVENTS_TOPIC", "order.events"),
		ConsumerGroup:    getenv("CONSUMER_GROUP", "customer-notifier"),
		OrdersServiceURL: os.Getenv("ORDERS_SERVICE_URL"),
		NotifyServiceURL: os.Getenv("NOTIFY_SERVICE_URL"),
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, errors.New("KAFKA_BROKERS environment variable is required")
	}
	if err := required("ORDERS_SERVICE_URL", cfg.OrdersServiceURL); err != nil {
		return cfg, err
	}
	if err := required("NOTIFY_SERVICE_URL", cfg.NotifyServiceURL); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type Notify struct {
	Port string
}

func LoadNotify() Notify {
	return Notify{Port: getenv("PORT", "8083")}
}

type Kitchen struct {
	OrdersServiceURL string
}

func LoadKitchen() (Kitchen, error) {
	cfg := Kitchen{
		OrdersServiceURL: getenv("ORDERS_SERVICE_URL", "http://localhost:8081"),
	}
	return cfg, nil
}

func required(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s environment variable is required", key)
	}
	return nil
}

func checkBackend(backend string, allowed ...string) error {
	for _, a := range allowed {
		if backend == a {
			return nil
		}
	}
	return fmt.Errorf("invalid INVENTORY_BACKEND %q: must be one of %s", backend, strings.Join(allowed, ", "))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
