package types

import "time"

// Source identifies one of the external signal collaborators.
type Source string

const (
	SourceCompetitor Source = "competitor"
	SourceSales      Source = "sales"
	SourceInventory  Source = "inventory"
)

// SourceStatus records per-source completeness for one collection pass.
type SourceStatus string

const (
	SourcePresent SourceStatus = "present"
	SourceStale   SourceStatus = "stale"
	SourceMissing SourceStatus = "missing"
)

// CompetitorPriceRecord is one scraped competitor price point.
type CompetitorPriceRecord struct {
	Competitor   string    `json:"competitor"`
	Price        float64   `json:"price"`
	URL          string    `json:"url,omitempty"`
	Availability bool      `json:"availability"`
	ShippingCost float64   `json:"shipping_cost,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
	ReviewCount  int       `json:"review_count,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
	Confidence   float64   `json:"confidence"`
}

// SaleRecord is one recorded sale.
type SaleRecord struct {
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Revenue   float64   `json:"revenue"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel,omitempty"`
}

// InventorySnapshot is the warehouse view at collection time.
type InventorySnapshot struct {
	StockLevel   int `json:"stock_level"`
	ReorderPoint int `json:"reorder_point"`
	MaxStock     int `json:"max_stock"`
}

// SignalBundle is the normalized snapshot one pricing cycle runs on. It is
// built, consumed and discarded per cycle; only its completeness flags
// survive into the decision's confidence.
type SignalBundle struct {
	ProductID        string                  `json:"product_id"`
	CompetitorPrices []CompetitorPriceRecord `json:"competitor_prices"`
	SalesRecords     []SaleRecord            `json:"sales_records"`
	Inventory        *InventorySnapshot      `json:"inventory,omitempty"`
	CollectedAt      time.Time               `json:"collected_at"`
	Sources          map[Source]SourceStatus `json:"sources"`
}

// allSources fixes the iteration order so completeness sums to the same
// bits on identical input.
var allSources = []Source{SourceCompetitor, SourceSales, SourceInventory}

// SourceCompleteness maps the bundle's per-source status to a [0,1] score.
func (b SignalBundle) SourceCompleteness() float64 {
	if len(b.Sources) == 0 {
		return 0
	}
	var sum float64
	for _, src := range allSources {
		switch b.Sources[src] {
		case SourcePresent:
			sum += 1
		case SourceStale:
			sum += 0.6
		}
	}
	return sum / float64(len(b.Sources))
}

// MissingAll reports whether every source failed.
func (b SignalBundle) MissingAll() bool {
	if len(b.Sources) == 0 {
		return true
	}
	for _, st := range b.Sources {
		if st != SourceMissing {
			return false
		}
	}
	return true
}
