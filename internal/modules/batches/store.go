package batches

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("batch not found")

type Store interface {
	Create(ctx context.Context, b *Batch) error
	GetByReference(ctx context.Context, ref string) (*Batch, error)
	Update(ctx context.Context, ref string, fields map[string]any) error
}

type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Create(ctx context.Context, b *Batch) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *GormStore) GetByReference(ctx context.Context, ref string) (*Batch, error) {
	var b Batch
	err := s.db.WithContext(ctx).First(&b, "reference = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) Update(ctx context.Context, ref string, fields map[string]any) error {
	updates := map[string]any{"updated_at": time.Now()}
	for k, v := range fields {
		updates[k] = v
	}
	return s.db.WithContext(ctx).Model(&Batch{}).
		Where("reference = ?", ref).
		Updates(updates).Error
}

// MemStore mirrors GormStore for tests.
type MemStore struct {
	mu    sync.Mutex
	byRef map[string]*Batch
}

func NewMemStore() *MemStore { return &MemStore{byRef: map[string]*Batch{}} }

func (s *MemStore) Create(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.byRef[b.Reference] = &cp
	return nil
}

func (s *MemStore) GetByReference(_ context.Context, ref string) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemStore) Update(_ context.Context, ref string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byRef[ref]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			b.Status = v.(string)
		case "success_count":
			b.SuccessCount = v.(int)
		case "failure_count":
			b.FailureCount = v.(int)
		}
	}
	b.UpdatedAt = time.Now()
	return nil
}
