package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

const (
	redisItemPrefix = "menu:item:"
	redisItemIndex  = "menu:items"

	redisMissing   = -2
	redisShortfall = -1
)

// Each script runs atomically inside redis, so the availability check and the
// decrement can never interleave with another reservation.
var (
	reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
if redis.call('HGET', KEYS[1], 'available') ~= '1' then return -1 end
local count = tonumber(redis.call('HGET', KEYS[1], 'inventory_count'))
local qty = tonumber(ARGV[1])
if count < qty then return -1 end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return redis.call('HINCRBY', KEYS[1], 'inventory_count', -qty)
`)

	releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return redis.call('HINCRBY', KEYS[1], 'inventory_count', tonumber(ARGV[1]))
`)

	restockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
redis.call('HSET', KEYS[1], 'inventory_count', ARGV[1], 'updated_at', ARGV[2])
return tonumber(ARGV[1])
`)
)

// RedisLedger stores each menu item as a hash under menu:item:<id>.
type RedisLedger struct {
	client redis.UniversalClient
}

func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

func itemKey(itemID string) string {
	return redisItemPrefix + itemID
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Put writes the full item and adds it to the index.
func (l *RedisLedger) Put(ctx context.Context, item domain.MenuItem) error {
	available := "0"
	if item.Available {
		available = "1"
	}
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, itemKey(item.ID), map[string]any{
			"name":                item.Name,
			"description":         item.Description,
			"category":            item.Category,
			"price":               item.Price,
			"available":           available,
			"inventory_count":     item.InventoryCount,
			"low_stock_threshold": item.LowStockThreshold,
			"updated_at":          now(),
		})
		pipe.SAdd(ctx, redisItemIndex, item.ID)
		return nil
	})
	return err
}

func (l *RedisLedger) GetItem(ctx context.Context, itemID string) (*domain.MenuItem, error) {
	fields, err := l.client.HGetAll(ctx, itemKey(itemID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrItemNotFound
	}
	return parseRedisItem(itemID, fields)
}

func parseRedisItem(itemID string, fields map[string]string) (*domain.MenuItem, error) {
	item := domain.MenuItem{
		ID:          itemID,
		Name:        fields["name"],
		Description: fields["description"],
		Category:    fields["category"],
		Available:   fields["available"] == "1",
	}

	var err error
	if item.Price, err = strconv.ParseInt(fields["price"], 10, 64); err != nil {
		return nil, fmt.Errorf("parse price of %s: %w", itemID, err)
	}
	if item.InventoryCount, err = strconv.Atoi(fields["inventory_count"]); err != nil {
		return nil, fmt.Errorf("parse inventory_count of %s: %w", itemID, err)
	}
	if item.LowStockThreshold, err = strconv.Atoi(fields["low_stock_threshold"]); err != nil {
		return nil, fmt.Errorf("parse low_stock_threshold of %s: %w", itemID, err)
	}
	if ts := fields["updated_at"]; ts != "" {
		if item.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse updated_at of %s: %w", itemID, err)
		}
	}
	return &item, nil
}

func (l *RedisLedger) Reserve(ctx context.Context, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	res, err := reserveScript.Run(ctx, l.client, []string{itemKey(itemID)}, quantity, now()).Int()
	if err != nil {
		return 0, err
	}

	switch res {
	case redisMissing:
		return 0, ErrItemNotFound
	case redisShortfall:
		return 0, ErrInsufficientStock
	}
	return res, nil
}

func (l *RedisLedger) Release(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	res, err := releaseScript.Run(ctx, l.client, []string{itemKey(itemID)}, quantity, now()).Int()
	if err != nil {
		return err
	}
	if res == redisMissing {
		return ErrItemNotFound
	}
	return nil
}

func (l *RedisLedger) Restock(ctx context.Context, itemID string, count int) (*domain.MenuItem, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: inventory count cannot be negative", ErrInvalidQuantity)
	}

	res, err := restockScript.Run(ctx, l.client, []string{itemKey(itemID)}, count, now()).Int()
	if err != nil {
		return nil, err
	}
	if res == redisMissing {
		return nil, ErrItemNotFound
	}
	return l.GetItem(ctx, itemID)
}

func (l *RedisLedger) ListAll(ctx context.Context) ([]domain.MenuItem, error) {
	return l.list(ctx, func(domain.MenuItem) bool { return true })
}

func (l *RedisLedger) ListLowStock(ctx context.Context) ([]domain.MenuItem, error) {
	return l.list(ctx, domain.MenuItem.LowStock)
}

func (l *RedisLedger) list(ctx context.Context, keep func(domain.MenuItem) bool) ([]domain.MenuItem, error) {
	ids, err := l.client.SMembers(ctx, redisItemIndex).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	items := []domain.MenuItem{}
	for _, id := range ids {
		item, err := l.GetItem(ctx, id)
		if errors.Is(err, ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if keep(*item) {
			items = append(items, *item)
		}
	}
	return items, nil
}
