// Package ledgerfeed adapts the ledger's ingested signal tables to the
// signal source interfaces consumed by pricing cycles.
package ledgerfeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reprice/internal/ledger"
	"reprice/internal/types"
)

const defaultCompetitorLookback = 72 * time.Hour

// CompetitorFeed serves the quotes external scrapers pushed into the ledger.
type CompetitorFeed struct {
	Store    *ledger.Store
	Lookback time.Duration
}

func NewCompetitorFeed(store *ledger.Store) *CompetitorFeed {
	return &CompetitorFeed{Store: store, Lookback: defaultCompetitorLookback}
}

func (f *CompetitorFeed) Fetch(ctx context.Context, productID string) ([]types.CompetitorPriceRecord, error) {
	lookback := f.Lookback
	if lookback <= 0 {
		lookback = defaultCompetitorLookback
	}
	since := time.Now().Add(-lookback)
	records, err := f.Store.CompetitorPricesSince(ctx, productID, since)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no competitor quotes within %s for %s", lookback, productID)
	}
	return records, nil
}

// SalesFeed serves recorded sales from the ledger.
type SalesFeed struct {
	Store *ledger.Store
}

func NewSalesFeed(store *ledger.Store) *SalesFeed {
	return &SalesFeed{Store: store}
}

func (f *SalesFeed) Fetch(ctx context.Context, productID string, window time.Duration) ([]types.SaleRecord, error) {
	now := time.Now()
	return f.Store.SalesBetween(ctx, productID, now.Add(-window), now)
}

// InventoryFeed serves the latest warehouse snapshot. A product without an
// inventory row falls back to the product table's stock level so partially
// onboarded catalogs still price.
type InventoryFeed struct {
	Store *ledger.Store
}

func NewInventoryFeed(store *ledger.Store) *InventoryFeed {
	return &InventoryFeed{Store: store}
}

func (f *InventoryFeed) Fetch(ctx context.Context, productID string) (types.InventorySnapshot, error) {
	snap, err := f.Store.Inventory(ctx, productID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return types.InventorySnapshot{}, err
	}
	product, perr := f.Store.Product(ctx, productID)
	if perr != nil {
		return types.InventorySnapshot{}, err
	}
	return types.InventorySnapshot{StockLevel: product.StockLevel}, nil
}
