package domain

import "time"

// MenuItem is the inventory-bearing view of a dish. InventoryCount never goes below zero.
type MenuItem struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Category          string    `json:"category,omitempty"`
	Price             int64     `json:"price"`
	Available         bool      `json:"available"`
	InventoryCount    int       `json:"inventory_count"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CanServe reports whether quantity units may be taken from the item right now.
func (m MenuItem) CanServe(quantity int) bool {
	return m.Available && m.InventoryCount >= quantity
}

func (m MenuItem) LowStock() bool {
	return m.InventoryCount <= m.LowStockThreshold
}

type Table struct {
	TableID   string `json:"table_id"`
	TableName string `json:"table_name"`
	Seats     int    `json:"seats"`
	IsActive  bool   `json:"is_active"`
	Location  string `json:"location,omitempty"`
}
