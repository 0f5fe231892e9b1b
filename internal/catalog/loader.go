package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reprice/internal/types"
)

// seedFile is the on-disk shape of the product catalog.
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Category     string  `yaml:"category"`
	BasePrice    float64 `yaml:"base_price"`
	CurrentPrice float64 `yaml:"current_price"`
	CostPrice    float64 `yaml:"cost_price"`
	StockLevel   int     `yaml:"stock_level"`
	Active       *bool   `yaml:"active"`
}

// Load reads the product seed catalog. A missing file is not an error;
// the ledger simply starts empty.
func Load(path string) ([]types.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading catalog failed (%s): %w", path, err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog failed (%s): %w", path, err)
	}
	now := time.Now()
	seen := make(map[string]bool, len(file.Products))
	out := make([]types.Product, 0, len(file.Products))
	for i, sp := range file.Products {
		p, err := sp.toProduct(now)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d invalid: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catalog entry %d duplicates product id %s", i, p.ID)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

func (sp seedProduct) toProduct(now time.Time) (types.Product, error) {
	id := strings.TrimSpace(sp.ID)
	if id == "" {
		return types.Product{}, fmt.Errorf("missing id")
	}
	if strings.TrimSpace(sp.Name) == "" {
		return types.Product{}, fmt.Errorf("product %s missing name", id)
	}
	if sp.BasePrice <= 0 {
		return types.Product{}, fmt.Errorf("product %s base_price must be > 0", id)
	}
	if sp.CostPrice <= 0 {
		return types.Product{}, fmt.Errorf("product %s cost_price must be > 0", id)
	}
	if sp.StockLevel < 0 {
		return types.Product{}, fmt.Errorf("product %s stock_level must be >= 0", id)
	}
	current := sp.CurrentPrice
	if current <= 0 {
		current = sp.BasePrice
	}
	active := true
	if sp.Active != nil {
		active = *sp.Active
	}
	category := strings.TrimSpace(sp.Category)
	if category == "" {
		category = "default"
	}
	return types.Product{
		ID:           id,
		Name:         strings.TrimSpace(sp.Name),
		Category:     category,
		BasePrice:    sp.BasePrice,
		CurrentPrice: current,
		CostPrice:    sp.CostPrice,
		StockLevel:   sp.StockLevel,
		IsActive:     active,
		UpdatedAt:    now,
	}, nil
}
