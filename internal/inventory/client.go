package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

// Client is a Ledger backed by the inventory service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

func (c *Client) GetItem(ctx context.Context, itemID string) (*domain.MenuItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.itemURL(itemID, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("create get item request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get menu item %s: %w", itemID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrItemNotFound
	default:
		return nil, fmt.Errorf("inventory service returned status %d for item %s", resp.StatusCode, itemID)
	}

	var item domain.MenuItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode menu item %s: %w", itemID, err)
	}
	return &item, nil
}

func (c *Client) Reserve(ctx context.Context, itemID string, quantity int) (int, error) {
	resp, err := c.postQuantity(ctx, c.itemURL(itemID, "/reserve"), quantity)
	if err != nil {
		return 0, fmt.Errorf("reserve stock for item %s: %w", itemID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp.StatusCode, itemID); err != nil {
		return 0, err
	}

	var body reserveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode reserve response for item %s: %w", itemID, err)
	}
	return body.Remaining, nil
}

func (c *Client) Release(ctx context.Context, itemID string, quantity int) error {
	resp, err := c.postQuantity(ctx, c.itemURL(itemID, "/release"), quantity)
	if err != nil {
		return fmt.Errorf("release stock for item %s: %w", itemID, err)
	}
	_ = resp.Body.Close()

	return statusError(resp.StatusCode, itemID)
}

func (c *Client) itemURL(itemID, suffix string) string {
	return fmt.Sprintf("%s/menu/%s%s", c.baseURL, url.PathEscape(itemID), suffix)
}

func (c *Client) postQuantity(ctx context.Context, target string, quantity int) (*http.Response, error) {
	data, err := json.Marshal(quantityRequest{Quantity: quantity})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func statusError(status int, itemID string) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrItemNotFound
	case http.StatusConflict:
		return ErrInsufficientStock
	case http.StatusBadRequest:
		return ErrInvalidQuantity
	}
	return fmt.Errorf("inventory service returned status %d for item %s", status, itemID)
}
