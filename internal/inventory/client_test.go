package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RoundTripsAgainstHandler(t *testing.T) {
	ledger := NewMemoryLedger(burger(5))
	server := httptest.NewServer(newTestRouter(ledger))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	ctx := context.Background()

	item, err := client.GetItem(ctx, "burger")
	require.NoError(t, err)
	assert.Equal(t, "Burger", item.Name)
	assert.Equal(t, int64(199), item.Price)

	remaining, err := client.Reserve(ctx, "burger", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	_, err = client.Reserve(ctx, "burger", 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, client.Release(ctx, "burger", 3))
	stored, err := ledger.GetItem(ctx, "burger")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.InventoryCount)

	_, err = client.GetItem(ctx, "ghost")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, client.Release(ctx, "ghost", 1), ErrItemNotFound)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.Reserve(context.Background(), "burger", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "status 500")
}
