package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reprice/internal/types"
)

// CompetitorDataSource returns structured competitor price records for a
// product. The scraping mechanics behind it are the collaborator's problem.
type CompetitorDataSource interface {
	Fetch(ctx context.Context, productID string) ([]types.CompetitorPriceRecord, error)
}

// SalesDataSource returns sale records for a product over a trailing window.
type SalesDataSource interface {
	Fetch(ctx context.Context, productID string, window time.Duration) ([]types.SaleRecord, error)
}

// InventorySource returns the current inventory snapshot for a product.
type InventorySource interface {
	Fetch(ctx context.Context, productID string) (types.InventorySnapshot, error)
}

// DataUnavailableError means every signal source failed; the cycle cannot
// proceed and no state is mutated.
type DataUnavailableError struct {
	ProductID string
	Causes    map[types.Source]error
}

func (e *DataUnavailableError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for src, err := range e.Causes {
		parts = append(parts, fmt.Sprintf("%s: %v", src, err))
	}
	return fmt.Sprintf("all signal sources unavailable for %s (%s)", e.ProductID, strings.Join(parts, "; "))
}
