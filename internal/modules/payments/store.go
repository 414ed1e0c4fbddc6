package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store is the persistence port for payments. The orchestrator and the
// callback path both write status through it; Transition is the only way to
// change status, so per-reference writes serialize on the guarded update.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByReference(ctx context.Context, ref string) (*Payment, error)
	GetByTransactionID(ctx context.Context, txnID string) (*Payment, error)

	// Transition atomically moves a payment from one status to another,
	// applying fields in the same write. Returns false without error when the
	// stored status no longer equals from (a concurrent writer won).
	Transition(ctx context.Context, ref, from, to string, fields map[string]any) (bool, error)

	// Update applies fields without touching status.
	Update(ctx context.Context, ref string, fields map[string]any) error

	// AppendRemark adds one line to the payment's remark history.
	AppendRemark(ctx context.Context, ref, remark string) error

	ListByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error)
	ListByBatchID(ctx context.Context, batchID string) ([]Payment, error)

	CreateReversal(ctx context.Context, r *Reversal) error
}

type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// DB returns the underlying database connection for direct queries.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) Create(ctx context.Context, p *Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) GetByReference(ctx context.Context, ref string) (*Payment, error) {
	var p Payment
	err := s.db.WithContext(ctx).First(&p, "reference = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) GetByTransactionID(ctx context.Context, txnID string) (*Payment, error) {
	var p Payment
	err := s.db.WithContext(ctx).First(&p, "transaction_id = ?", txnID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) Transition(ctx context.Context, ref, from, to string, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	for k, v := range fields {
		updates[k] = v
	}

	// Guarded update: the WHERE clause is the compare-and-set.
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("reference = ? AND status = ?", ref, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Update(ctx context.Context, ref string, fields map[string]any) error {
	updates := map[string]any{"updated_at": time.Now()}
	for k, v := range fields {
		updates[k] = v
	}
	return s.db.WithContext(ctx).Model(&Payment{}).
		Where("reference = ?", ref).
		Updates(updates).Error
}

func (s *GormStore) AppendRemark(ctx context.Context, ref, remark string) error {
	// CONCAT_WS skips the NULL on the first remark.
	return s.db.WithContext(ctx).Model(&Payment{}).
		Where("reference = ?", ref).
		Updates(map[string]any{
			"remarks":    gorm.Expr("CONCAT_WS('\n', remarks, ?)", remark),
			"updated_at": time.Now(),
		}).Error
}

func (s *GormStore) ListByDateRange(ctx context.Context, from, to time.Time) ([]Payment, error) {
	var out []Payment
	err := s.db.WithContext(ctx).
		Where("payment_date >= ? AND payment_date <= ?", from, to).
		Order("payment_date, reference").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListByBatchID(ctx context.Context, batchID string) ([]Payment, error) {
	var out []Payment
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at, reference").
		Find(&out).Error
	return out, err
}

func (s *GormStore) CreateReversal(ctx context.Context, r *Reversal) error {
	return s.db.WithContext(ctx).Create(r).Error
}
