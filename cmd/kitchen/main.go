package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/quickserve/internal/config"
	"github.com/joao-fontenele/quickserve/internal/kitchen"
	"github.com/joao-fontenele/quickserve/internal/telemetry"
)

// kitchen is a console kitchen display. It redraws the board on every change
// and reads "move <orderId> <status>" commands from stdin.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.LoadKitchen()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{
		Timeout:   5 * time.Second,
		Transport: telemetry.HTTPClientTransport(),
	}
	client := kitchen.NewClient(cfg.OrdersServiceURL, httpClient)

	coordinator := kitchen.NewCoordinator(client, logger, kitchen.WithOnChange(func(b kitchen.Buckets) {
		fmt.Print("\033[H\033[2J")
		if err := kitchen.Render(os.Stdout, b); err != nil {
			logger.Error("failed to render board", "error", err)
		}
	}))

	go readCommands(ctx, coordinator, logger)

	logger.Info("starting kitchen display", "orders_service", cfg.OrdersServiceURL)
	if err := kitchen.Run(ctx, client, coordinator); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("kitchen display stopped", "error", err)
		os.Exit(1)
	}
}

func readCommands(ctx context.Context, coordinator *kitchen.Coordinator, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd, err := kitchen.ParseCommand(scanner.Text())
		if err != nil {
			logger.Warn("bad command", "error", err)
			continue
		}
		if _, err := coordinator.Move(ctx, cmd.OrderID, cmd.Target); err != nil {
			logger.Warn("move failed", "order_id", cmd.OrderID, "to", cmd.Target, "error", err)
		}
	}
}
