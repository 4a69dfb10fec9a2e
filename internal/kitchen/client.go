package kitchen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// Client talks to the orders service on behalf of a kitchen display.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		dialer:     websocket.DefaultDialer,
	}
}

func (c *Client) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/active", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch active orders: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := responseError(resp); err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode active orders: %w", err)
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, orderID string) (domain.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%s", c.baseURL, orderID), nil)
	if err != nil {
		return domain.Order{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := responseError(resp); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

func (c *Client) UpdateStatus(ctx context.Context, orderID string, status domain.Status) (domain.Order, error) {
	data, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return domain.Order{}, err
	}

	url := fmt.Sprintf("%s/orders/%s/status", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return domain.Order{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := responseError(resp); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

// responseError turns a non-200 answer into the matching domain error.
func responseError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, body.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, body.Error)
	}
	return fmt.Errorf("orders service returned status %d: %s", resp.StatusCode, body.Error)
}

// Subscription is an open realtime connection. Events published before it
// was opened are never replayed.
type Subscription struct {
	conn *websocket.Conn
}

// Subscribe connects to the orders service realtime endpoint.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", url, err)
	}
	return &Subscription{conn: conn}, nil
}

// Next blocks until the next event arrives. Frames that are not known events
// are skipped.
func (s *Subscription) Next() (domain.Event, error) {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		event, err := domain.DecodeEvent(payload)
		if err != nil {
			continue
		}
		return event, nil
	}
}

func (s *Subscription) Close() error {
	return s.conn.Close()
}

// Run subscribes, loads the active orders and then feeds every event into the
// coordinator until ctx is done or the connection drops.
func Run(ctx context.Context, client *Client, coordinator *Coordinator) error {
	sub, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	orders, err := client.ActiveOrders(ctx)
	if err != nil {
		_ = sub.Close()
		return err
	}
	coordinator.Load(orders)

	for {
		event, err := sub.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		coordinator.Apply(event)
	}
}
