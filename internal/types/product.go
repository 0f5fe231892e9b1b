package types

import "time"

// Product is the only mutable long-lived entity. CurrentPrice may only be
// changed through an applied Decision.
type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	BasePrice      float64 `json:"base_price"`
	CurrentPrice   float64 `json:"current_price"`
	CostPrice      float64 `json:"cost_price"`
	StockLevel     int     `json:"stock_level"`
	MarketPosition string  `json:"market_position"`
	IsActive       bool    `json:"is_active"`

	UpdatedAt time.Time `json:"updated_at"`
}
