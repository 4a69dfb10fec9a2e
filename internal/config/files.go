package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

type transitionsFile struct {
	Transitions map[string][]string `yaml:"transitions"`
}

// LoadTransitions reads a status transition table. An empty path yields the
// default table.
func LoadTransitions(path string) (domain.TransitionTable, error) {
	if path == "" {
		return domain.DefaultTransitions(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read transitions file: %w", err)
	}

	var file transitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse transitions file: %w", err)
	}
	if len(file.Transitions) == 0 {
		return nil, fmt.Errorf("transitions file %s defines no transitions", path)
	}

	table := make(domain.TransitionTable, len(file.Transitions))
	for from, targets := range file.Transitions {
		next := make([]domain.Status, 0, len(targets))
		for _, to := range targets {
			next = append(next, domain.Status(to))
		}
		table[domain.Status(from)] = next
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transitions file %s: %w", path, err)
	}
	return table, nil
}

type menuFile struct {
	Items []struct {
		ID                string `yaml:"id"`
		Name              string `yaml:"name"`
		Description       string `yaml:"description"`
		Category          string `yaml:"category"`
		Price             int64  `yaml:"price"`
		Available         *bool  `yaml:"available"`
		InventoryCount    int    `yaml:"inventory_count"`
		LowStockThreshold int    `yaml:"low_stock_threshold"`
	} `yaml:"items"`
}

// LoadMenu reads the seed menu used by the in-process and redis ledgers.
// Items are available unless the file says otherwise.
func LoadMenu(path string) ([]domain.MenuItem, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}

	var file menuFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse menu file: %w", err)
	}

	items := make([]domain.MenuItem, 0, len(file.Items))
	for _, it := range file.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("menu file %s: item without id", path)
		}
		if it.InventoryCount < 0 {
			return nil, fmt.Errorf("menu file %s: item %s has negative inventory", path, it.ID)
		}
		available := true
		if it.Available != nil {
			available = *it.Available
		}
		items = append(items, domain.MenuItem{
			ID:                it.ID,
			Name:              it.Name,
			Description:       it.Description,
			Category:          it.Category,
			Price:             it.Price,
			Available:         available,
			InventoryCount:    it.InventoryCount,
			LowStockThreshold: it.LowStockThreshold,
		})
	}
	return items, nil
}

type tablesFile struct {
	Tables []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Seats    int    `yaml:"seats"`
		Active   *bool  `yaml:"active"`
		Location string `yaml:"location"`
	} `yaml:"tables"`
}

// LoadTables reads the table directory used when orders are not persisted.
// Tables are active unless the file says otherwise.
func LoadTables(path string) ([]domain.Table, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	var file tablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tables file: %w", err)
	}

	tables := make([]domain.Table, 0, len(file.Tables))
	for _, t := range file.Tables {
		if t.ID == "" {
			return nil, fmt.Errorf("tables file %s: table without id", path)
		}
		active := true
		if t.Active != nil {
			active = *t.Active
		}
		tables = append(tables, domain.Table{
			TableID:   t.ID,
			TableName: t.Name,
			Seats:     t.Seats,
			IsActive:  active,
			Location:  t.Location,
		})
	}
	return tables, nil
}
