package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"reprice/internal/types"
)

// --- ingested signal data ---
//
// External collectors (scrapers, order feeds, warehouse sync) push their
// observations through the ingest API; pricing cycles read them back out
// through the signal source interfaces.

func (s *Store) RecordCompetitorPrices(ctx context.Context, productID string, records []types.CompetitorPriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]CompetitorPriceModel, 0, len(records))
	for _, r := range records {
		m := competitorPriceToModel(productID, r)
		if m.ScrapedAt <= 0 {
			m.ScrapedAt = time.Now().Unix()
		}
		models = append(models, m)
	}
	return persistErr("record competitor prices", s.db.WithContext(ctx).Create(&models).Error)
}

func (s *Store) CompetitorPricesSince(ctx context.Context, productID string, since time.Time) ([]types.CompetitorPriceRecord, error) {
	var models []CompetitorPriceModel
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND scraped_at >= ?", productID, since.Unix()).
		Order("scraped_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("querying competitor prices failed: %w", err)
	}
	out := make([]types.CompetitorPriceRecord, 0, len(models))
	for _, m := range models {
		out = append(out, competitorPriceFromModel(m))
	}
	return out, nil
}

func (s *Store) RecordSales(ctx context.Context, productID string, records []types.SaleRecord) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]SaleModel, 0, len(records))
	for _, r := range records {
		m := saleToModel(productID, r)
		if m.SoldAt <= 0 {
			m.SoldAt = time.Now().Unix()
		}
		if m.Revenue == 0 && m.Quantity > 0 {
			m.Revenue = float64(m.Quantity) * m.Price
		}
		models = append(models, m)
	}
	return persistErr("record sales", s.db.WithContext(ctx).Create(&models).Error)
}

func (s *Store) SalesBetween(ctx context.Context, productID string, from, to time.Time) ([]types.SaleRecord, error) {
	var models []SaleModel
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND sale_date >= ? AND sale_date <= ?", productID, from.Unix(), to.Unix()).
		Order("sale_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("querying sales failed: %w", err)
	}
	out := make([]types.SaleRecord, 0, len(models))
	for _, m := range models {
		out = append(out, saleFromModel(m))
	}
	return out, nil
}

// UpsertInventory replaces the inventory snapshot for a product and keeps
// the product's stock level in step with it.
func (s *Store) UpsertInventory(ctx context.Context, productID string, snap types.InventorySnapshot) error {
	now := time.Now().Unix()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := InventoryModel{
			ProductID:     productID,
			StockLevel:    snap.StockLevel,
			ReorderPoint:  snap.ReorderPoint,
			MaxStock:      snap.MaxStock,
			UpdatedAtUnix: now,
		}
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		return tx.Model(&ProductModel{}).
			Where("id = ?", productID).
			Updates(map[string]interface{}{"stock_level": snap.StockLevel, "updated_at": now}).Error
	})
	return persistErr("upsert inventory", err)
}

func (s *Store) Inventory(ctx context.Context, productID string) (types.InventorySnapshot, error) {
	var m InventoryModel
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.InventorySnapshot{}, ErrNotFound
		}
		return types.InventorySnapshot{}, fmt.Errorf("querying inventory failed: %w", err)
	}
	return types.InventorySnapshot{
		StockLevel:   m.StockLevel,
		ReorderPoint: m.ReorderPoint,
		MaxStock:     m.MaxStock,
	}, nil
}
