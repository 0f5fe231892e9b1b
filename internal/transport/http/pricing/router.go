package pricinghttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reprice/internal/ledger"
	"reprice/internal/orchestrator"
	"reprice/internal/types"
)

// PricingService is implemented by the cycle orchestrator.
type PricingService interface {
	TriggerCycle(ctx context.Context, productID string) (orchestrator.CycleResult, error)
	RunSweep(ctx context.Context) error
	AcceptDecision(ctx context.Context, decisionID string) error
	RejectDecision(ctx context.Context, decisionID, reason string) error
	OverridePrice(ctx context.Context, productID string, price float64) (types.Decision, error)
}

// Router exposes repricing queries and manual review actions.
type Router struct {
	Service PricingService
	Ledger  *ledger.Store
	Traces  *ledger.CycleTraceStore
}

func NewRouter(service PricingService, store *ledger.Store, traces *ledger.CycleTraceStore) *Router {
	return &Router{Service: service, Ledger: store, Traces: traces}
}

// Register mounts the /api/pricing routes on the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/cycles/:productID", r.handleTriggerCycle)
	group.POST("/cycles", r.handleSweep)
	group.GET("/products", r.handleProducts)
	group.GET("/products/:productID", r.handleProduct)
	group.PUT("/products/:productID/price", r.handleOverridePrice)
	group.GET("/decisions/pending", r.handlePendingDecisions)
	group.GET("/decisions/:productID", r.handleDecisionHistory)
	group.POST("/decisions/:decisionID/accept", r.handleAcceptDecision)
	group.POST("/decisions/:decisionID/reject", r.handleRejectDecision)
	if r.Traces != nil {
		group.GET("/cycles/traces/:productID", r.handleCycleTraces)
	}
	group.POST("/signals/:productID/competitor-prices", r.handleIngestCompetitorPrices)
	group.POST("/signals/:productID/sales", r.handleIngestSales)
	group.POST("/signals/:productID/inventory", r.handleIngestInventory)
}

func (r *Router) handleIngestCompetitorPrices(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	var body struct {
		Records []types.CompetitorPriceRecord `json:"records"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records required"})
		return
	}
	if err := r.Ledger.RecordCompetitorPrices(c.Request.Context(), productID, body.Records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "count": len(body.Records)})
}

func (r *Router) handleIngestSales(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	var body struct {
		Records []types.SaleRecord `json:"records"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records required"})
		return
	}
	if err := r.Ledger.RecordSales(c.Request.Context(), productID, body.Records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "count": len(body.Records)})
}

func (r *Router) handleIngestInventory(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	var snap types.InventorySnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if snap.StockLevel < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock_level must be >= 0"})
		return
	}
	if err := r.Ledger.UpsertInventory(c.Request.Context(), productID, snap); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleTriggerCycle(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productID required"})
		return
	}
	result, err := r.Service.TriggerCycle(c.Request.Context(), productID)
	if err != nil {
		var busy *orchestrator.CycleInProgressError
		switch {
		case errors.As(err, &busy):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "phase": busy.Phase.String()})
		case errors.Is(err, ledger.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found: " + productID})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) handleSweep(c *gin.Context) {
	if err := r.Service.RunSweep(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleProducts(c *gin.Context) {
	products, err := r.Ledger.ActiveProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (r *Router) handleProduct(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	product, err := r.Ledger.Product(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found: " + productID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, product)
}

func (r *Router) handleOverridePrice(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	var body struct {
		Price float64 `json:"price"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be > 0"})
		return
	}
	d, err := r.Service.OverridePrice(c.Request.Context(), productID, body.Price)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found: " + productID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied", "decision": d})
}

func (r *Router) handleDecisionHistory(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	var since time.Time
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}
	decisions, err := r.Ledger.History(c.Request.Context(), productID, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions, "count": len(decisions)})
}

func (r *Router) handlePendingDecisions(c *gin.Context) {
	decisions, err := r.Ledger.PendingDecisions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions, "count": len(decisions)})
}

func (r *Router) handleAcceptDecision(c *gin.Context) {
	decisionID := strings.TrimSpace(c.Param("decisionID"))
	if err := r.Service.AcceptDecision(c.Request.Context(), decisionID); err != nil {
		writeReviewError(c, decisionID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied", "decision_id": decisionID})
}

func (r *Router) handleRejectDecision(c *gin.Context) {
	decisionID := strings.TrimSpace(c.Param("decisionID"))
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	if strings.TrimSpace(body.Reason) == "" {
		body.Reason = "rejected by operator"
	}
	if err := r.Service.RejectDecision(c.Request.Context(), decisionID, body.Reason); err != nil {
		writeReviewError(c, decisionID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected", "decision_id": decisionID})
}

func (r *Router) handleCycleTraces(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("productID"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	traces, err := r.Traces.Recent(c.Request.Context(), productID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": traces, "count": len(traces)})
}

func writeReviewError(c *gin.Context, decisionID string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found: " + decisionID})
	case errors.Is(err, ledger.ErrDecisionImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
