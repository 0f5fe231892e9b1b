package ledger

import (
	"encoding/json"
	"time"

	"reprice/internal/types"

	"gorm.io/datatypes"
)

type ProductModel struct {
	ID             string  `gorm:"column:id;primaryKey"`
	Name           string  `gorm:"column:name"`
	Category       string  `gorm:"column:category;index"`
	BasePrice      float64 `gorm:"column:base_price"`
	CurrentPrice   float64 `gorm:"column:current_price"`
	CostPrice      float64 `gorm:"column:cost_price"`
	StockLevel     int     `gorm:"column:stock_level"`
	MarketPosition string  `gorm:"column:market_position"`
	IsActive       bool    `gorm:"column:is_active;index"`
	// LastDecisionID references the decision that set current_price.
	LastDecisionID string `gorm:"column:last_decision_id"`
	UpdatedAtUnix  int64  `gorm:"column:updated_at"`
}

func (ProductModel) TableName() string { return "products" }

type DecisionModel struct {
	ID                string         `gorm:"column:id;primaryKey"`
	ProductID         string         `gorm:"column:product_id;index"`
	OldPrice          float64        `gorm:"column:old_price"`
	NewPrice          float64        `gorm:"column:new_price"`
	ChangeReason      string         `gorm:"column:change_reason"`
	Confidence        float64        `gorm:"column:confidence"`
	ReasoningJSON     datatypes.JSON `gorm:"column:reasoning_json;type:TEXT"`
	Status            string         `gorm:"column:status;index"`
	Explanation       string         `gorm:"column:explanation"`
	PredictedVelocity float64        `gorm:"column:predicted_velocity"`
	CreatedAtUnix     int64          `gorm:"column:created_at;index"`
	AppliedAtUnix     *int64         `gorm:"column:applied_at"`
}

func (DecisionModel) TableName() string { return "decisions" }

type FeedbackModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	ProductID       string  `gorm:"column:product_id;index"`
	DecisionID      string  `gorm:"column:decision_id;uniqueIndex"`
	PredictedEffect float64 `gorm:"column:predicted_effect"`
	ObservedEffect  float64 `gorm:"column:observed_effect"`
	Delta           float64 `gorm:"column:delta"`
	Adjustment      float64 `gorm:"column:adjustment"`
	Consumed        bool    `gorm:"column:consumed;index"`
	ConsumedBy      string  `gorm:"column:consumed_by"`
	CreatedAtUnix   int64   `gorm:"column:created_at"`
}

func (FeedbackModel) TableName() string { return "feedback_entries" }

// CompetitorPriceModel holds scraped competitor quotes fed in by external
// collectors through the ingest API.
type CompetitorPriceModel struct {
	ID           int64   `gorm:"column:id;primaryKey"`
	ProductID    string  `gorm:"column:product_id;index:idx_competitor_product_time"`
	Competitor   string  `gorm:"column:competitor_name"`
	Price        float64 `gorm:"column:competitor_price"`
	URL          string  `gorm:"column:competitor_url"`
	Availability bool    `gorm:"column:availability"`
	ShippingCost float64 `gorm:"column:shipping_cost"`
	Rating       float64 `gorm:"column:rating"`
	ReviewCount  int     `gorm:"column:review_count"`
	Confidence   float64 `gorm:"column:confidence_score"`
	ScrapedAt    int64   `gorm:"column:scraped_at;index:idx_competitor_product_time"`
}

func (CompetitorPriceModel) TableName() string { return "competitor_prices" }

type SaleModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	ProductID string  `gorm:"column:product_id;index:idx_sales_product_time"`
	Quantity  int     `gorm:"column:quantity_sold"`
	Price     float64 `gorm:"column:sale_price"`
	Revenue   float64 `gorm:"column:total_revenue"`
	Channel   string  `gorm:"column:channel"`
	SoldAt    int64   `gorm:"column:sale_date;index:idx_sales_product_time"`
}

func (SaleModel) TableName() string { return "sales_data" }

type InventoryModel struct {
	ProductID     string `gorm:"column:product_id;primaryKey"`
	StockLevel    int    `gorm:"column:stock_level"`
	ReorderPoint  int    `gorm:"column:reorder_point"`
	MaxStock      int    `gorm:"column:max_stock"`
	UpdatedAtUnix int64  `gorm:"column:updated_at"`
}

func (InventoryModel) TableName() string { return "inventory" }

func competitorPriceToModel(productID string, r types.CompetitorPriceRecord) CompetitorPriceModel {
	return CompetitorPriceModel{
		ProductID:    productID,
		Competitor:   r.Competitor,
		Price:        r.Price,
		URL:          r.URL,
		Availability: r.Availability,
		ShippingCost: r.ShippingCost,
		Rating:       r.Rating,
		ReviewCount:  r.ReviewCount,
		Confidence:   r.Confidence,
		ScrapedAt:    r.ScrapedAt.Unix(),
	}
}

func competitorPriceFromModel(m CompetitorPriceModel) types.CompetitorPriceRecord {
	return types.CompetitorPriceRecord{
		Competitor:   m.Competitor,
		Price:        m.Price,
		URL:          m.URL,
		Availability: m.Availability,
		ShippingCost: m.ShippingCost,
		Rating:       m.Rating,
		ReviewCount:  m.ReviewCount,
		Confidence:   m.Confidence,
		ScrapedAt:    time.Unix(m.ScrapedAt, 0),
	}
}

func saleToModel(productID string, r types.SaleRecord) SaleModel {
	return SaleModel{
		ProductID: productID,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Revenue:   r.Revenue,
		Channel:   r.Channel,
		SoldAt:    r.Timestamp.Unix(),
	}
}

func saleFromModel(m SaleModel) types.SaleRecord {
	return types.SaleRecord{
		Quantity:  m.Quantity,
		Price:     m.Price,
		Revenue:   m.Revenue,
		Channel:   m.Channel,
		Timestamp: time.Unix(m.SoldAt, 0),
	}
}

func productToModel(p types.Product) ProductModel {
	return ProductModel{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		BasePrice:      p.BasePrice,
		CurrentPrice:   p.CurrentPrice,
		CostPrice:      p.CostPrice,
		StockLevel:     p.StockLevel,
		MarketPosition: p.MarketPosition,
		IsActive:       p.IsActive,
		UpdatedAtUnix:  p.UpdatedAt.Unix(),
	}
}

func productFromModel(m ProductModel) types.Product {
	return types.Product{
		ID:             m.ID,
		Name:           m.Name,
		Category:       m.Category,
		BasePrice:      m.BasePrice,
		CurrentPrice:   m.CurrentPrice,
		CostPrice:      m.CostPrice,
		StockLevel:     m.StockLevel,
		MarketPosition: m.MarketPosition,
		IsActive:       m.IsActive,
		UpdatedAt:      time.Unix(m.UpdatedAtUnix, 0),
	}
}

func decisionToModel(d types.Decision) (DecisionModel, error) {
	chain, err := json.Marshal(d.ReasoningChain)
	if err != nil {
		return DecisionModel{}, err
	}
	m := DecisionModel{
		ID:                d.ID,
		ProductID:         d.ProductID,
		OldPrice:          d.OldPrice,
		NewPrice:          d.NewPrice,
		ChangeReason:      d.ChangeReason,
		Confidence:        d.Confidence,
		ReasoningJSON:     datatypes.JSON(chain),
		Status:            string(d.Status),
		Explanation:       d.Explanation,
		PredictedVelocity: d.PredictedVelocity,
		CreatedAtUnix:     d.CreatedAt.Unix(),
	}
	return m, nil
}

func decisionFromModel(m DecisionModel) (types.Decision, error) {
	var chain []types.ReasoningStep
	if len(m.ReasoningJSON) > 0 {
		if err := json.Unmarshal(m.ReasoningJSON, &chain); err != nil {
			return types.Decision{}, err
		}
	}
	return types.Decision{
		ID:                m.ID,
		ProductID:         m.ProductID,
		OldPrice:          m.OldPrice,
		NewPrice:          m.NewPrice,
		ChangeReason:      m.ChangeReason,
		Confidence:        m.Confidence,
		ReasoningChain:    chain,
		Status:            types.DecisionStatus(m.Status),
		Explanation:       m.Explanation,
		PredictedVelocity: m.PredictedVelocity,
		CreatedAt:         time.Unix(m.CreatedAtUnix, 0),
	}, nil
}

func feedbackToModel(f types.FeedbackEntry) FeedbackModel {
	return FeedbackModel{
		ID:              f.ID,
		ProductID:       f.ProductID,
		DecisionID:      f.DecisionID,
		PredictedEffect: f.PredictedEffect,
		ObservedEffect:  f.ObservedEffect,
		Delta:           f.Delta,
		Adjustment:      f.Adjustment,
		Consumed:        f.Consumed,
		ConsumedBy:      f.ConsumedBy,
		CreatedAtUnix:   f.CreatedAt.Unix(),
	}
}

func feedbackFromModel(m FeedbackModel) types.FeedbackEntry {
	return types.FeedbackEntry{
		ID:              m.ID,
		ProductID:       m.ProductID,
		DecisionID:      m.DecisionID,
		PredictedEffect: m.PredictedEffect,
		ObservedEffect:  m.ObservedEffect,
		Delta:           m.Delta,
		Adjustment:      m.Adjustment,
		Consumed:        m.Consumed,
		ConsumedBy:      m.ConsumedBy,
		CreatedAt:       time.Unix(m.CreatedAtUnix, 0),
	}
}
