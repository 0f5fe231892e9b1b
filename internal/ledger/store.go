package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reprice/internal/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrDecisionImmutable indicates an attempt to change a decision that
	// already left the proposed state.
	ErrDecisionImmutable = errors.New("ledger: decision immutable")
)

// PersistenceError wraps a failed ledger write; the orchestrator retries
// these with bounded backoff.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("ledger %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store is the append-only decision ledger plus the product table. Applied
// decisions are never updated or deleted; a correction is a new decision.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the sqlite ledger at path.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger store requires a path")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&ProductModel{},
		&DecisionModel{},
		&FeedbackModel{},
		&CompetitorPriceModel{},
		&SaleModel{},
		&InventoryModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- products ---

func (s *Store) SaveProduct(ctx context.Context, p types.Product) error {
	m := productToModel(p)
	if m.UpdatedAtUnix <= 0 {
		m.UpdatedAtUnix = time.Now().Unix()
	}
	return persistErr("save product", s.db.WithContext(ctx).Save(&m).Error)
}

// SeedProducts inserts products that do not exist yet; existing rows are
// left untouched so committed prices survive restarts.
func (s *Store) SeedProducts(ctx context.Context, products []types.Product) (int, error) {
	inserted := 0
	for _, p := range products {
		var count int64
		if err := s.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return inserted, persistErr("seed products", err)
		}
		if count > 0 {
			continue
		}
		m := productToModel(p)
		m.UpdatedAtUnix = time.Now().Unix()
		if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
			return inserted, persistErr("seed products", err)
		}
		inserted++
	}
	return inserted, nil
}

func (s *Store) Product(ctx context.Context, id string) (types.Product, error) {
	var m ProductModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Product{}, err
	}
	return productFromModel(m), nil
}

func (s *Store) ActiveProducts(ctx context.Context) ([]types.Product, error) {
	var models []ProductModel
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Product, 0, len(models))
	for _, m := range models {
		out = append(out, productFromModel(m))
	}
	return out, nil
}

// --- decisions ---

// AppendDecision persists a new decision record. Append-only: an existing
// id is an error, never an overwrite.
func (s *Store) AppendDecision(ctx context.Context, d types.Decision) error {
	m, err := decisionToModel(d)
	if err != nil {
		return persistErr("append decision", err)
	}
	return persistErr("append decision", s.db.WithContext(ctx).Create(&m).Error)
}

func (s *Store) Decision(ctx context.Context, id string) (types.Decision, error) {
	var m DecisionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Decision{}, fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Decision{}, err
	}
	return decisionFromModel(m)
}

// History returns decisions for a product since the given time, newest
// first. since zero value means no lower bound.
func (s *Store) History(ctx context.Context, productID string, since time.Time, limit int) ([]types.Decision, error) {
	q := s.db.WithContext(ctx).Where("product_id = ?", productID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.Unix())
	}
	if limit <= 0 {
		limit = 100
	}
	var models []DecisionModel
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Decision, 0, len(models))
	for _, m := range models {
		d, err := decisionFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) PendingDecisions(ctx context.Context) ([]types.Decision, error) {
	var models []DecisionModel
	err := s.db.WithContext(ctx).
		Where("status = ?", string(types.StatusProposed)).
		Order("created_at ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Decision, 0, len(models))
	for _, m := range models {
		d, err := decisionFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ProposeDecision persists a decision with status proposed, consuming the
// feedback entry that influenced it in the same transaction so the entry
// cannot affect a second decision.
func (s *Store) ProposeDecision(ctx context.Context, d types.Decision, consumedFeedbackID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, merr := decisionToModel(d)
		if merr != nil {
			return merr
		}
		m.Status = string(types.StatusProposed)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		if consumedFeedbackID > 0 {
			res := tx.Model(&FeedbackModel{}).
				Where("id = ? AND consumed = ?", consumedFeedbackID, false).
				Updates(map[string]any{"consumed": true, "consumed_by": d.ID})
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	return persistErr("propose decision", err)
}

// RejectDecision moves a proposed decision to rejected. Applied decisions
// are immutable.
func (s *Store) RejectDecision(ctx context.Context, id, reason string) error {
	res := s.db.WithContext(ctx).Model(&DecisionModel{}).
		Where("id = ? AND status = ?", id, string(types.StatusProposed)).
		Updates(map[string]any{
			"status":        string(types.StatusRejected),
			"change_reason": reason,
		})
	if res.Error != nil {
		return persistErr("reject decision", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.classifyMissedUpdate(ctx, id)
	}
	return nil
}

// CommitDecision applies a decision: the product's current price moves and
// the applied decision record lands in the same transaction, so a price
// mutation can never exist without its audit record. consumedFeedbackID,
// when non-zero, marks the feedback entry consumed in the same transaction.
func (s *Store) CommitDecision(ctx context.Context, d types.Decision, consumedFeedbackID int64) error {
	now := time.Now().Unix()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing DecisionModel
		err := tx.Where("id = ?", d.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m, merr := decisionToModel(d)
			if merr != nil {
				return merr
			}
			m.Status = string(types.StatusApplied)
			m.AppliedAtUnix = &now
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if existing.Status != string(types.StatusProposed) {
				return ErrDecisionImmutable
			}
			res := tx.Model(&DecisionModel{}).
				Where("id = ? AND status = ?", d.ID, string(types.StatusProposed)).
				Updates(map[string]any{"status": string(types.StatusApplied), "applied_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrDecisionImmutable
			}
		}

		res := tx.Model(&ProductModel{}).Where("id = ?", d.ProductID).Updates(map[string]any{
			"current_price":    d.NewPrice,
			"last_decision_id": d.ID,
			"updated_at":       now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %s: %w", d.ProductID, ErrNotFound)
		}

		if consumedFeedbackID > 0 {
			res := tx.Model(&FeedbackModel{}).
				Where("id = ? AND consumed = ?", consumedFeedbackID, false).
				Updates(map[string]any{"consumed": true, "consumed_by": d.ID})
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if errors.Is(err, ErrDecisionImmutable) || errors.Is(err, ErrNotFound) {
		return err
	}
	return persistErr("commit decision", err)
}

func (s *Store) classifyMissedUpdate(ctx context.Context, id string) error {
	var m DecisionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return ErrDecisionImmutable
}

// --- feedback ---

func (s *Store) AppendFeedback(ctx context.Context, f types.FeedbackEntry) error {
	m := feedbackToModel(f)
	if m.CreatedAtUnix <= 0 {
		m.CreatedAtUnix = time.Now().Unix()
	}
	return persistErr("append feedback", s.db.WithContext(ctx).Create(&m).Error)
}

// LatestUnconsumedFeedback returns the newest unconsumed entry for the
// product, or nil when there is none.
func (s *Store) LatestUnconsumedFeedback(ctx context.Context, productID string) (*types.FeedbackEntry, error) {
	var m FeedbackModel
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND consumed = ?", productID, false).
		Order("created_at DESC, id DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f := feedbackFromModel(m)
	return &f, nil
}

// DecisionsDueReflection returns applied decisions whose reflection horizon
// has elapsed and which have no feedback entry yet.
func (s *Store) DecisionsDueReflection(ctx context.Context, horizon time.Duration, asOf time.Time) ([]types.Decision, error) {
	cutoff := asOf.Add(-horizon).Unix()
	var models []DecisionModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND applied_at IS NOT NULL AND applied_at <= ?", string(types.StatusApplied), cutoff).
		Where("id NOT IN (?)", s.db.Model(&FeedbackModel{}).Select("decision_id")).
		Order("applied_at ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Decision, 0, len(models))
	for _, m := range models {
		d, err := decisionFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
