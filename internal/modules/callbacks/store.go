package callbacks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type EventStore interface {
	// Insert records the event; dup=true means this (channel, event id) was
	// already received and the caller should acknowledge without reprocessing.
	Insert(ctx context.Context, e *Event) (dup bool, err error)
	MarkProcessed(ctx context.Context, id string, processErr error) error
}

type GormEventStore struct{ db *gorm.DB }

func NewGormEventStore(db *gorm.DB) *GormEventStore { return &GormEventStore{db: db} }

func (s *GormEventStore) Insert(ctx context.Context, e *Event) (bool, error) {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if isDup(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (s *GormEventStore) MarkProcessed(ctx context.Context, id string, processErr error) error {
	updates := map[string]any{}
	if processErr != nil {
		msg := processErr.Error()
		if len(msg) > 250 {
			msg = msg[:250]
		}
		updates["process_error"] = msg
	} else {
		now := time.Now()
		updates["processed_at"] = &now
		updates["process_error"] = nil
	}
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// MemEventStore mirrors the unique-index dedupe for tests.
type MemEventStore struct {
	mu   sync.Mutex
	seen map[string]*Event
}

func NewMemEventStore() *MemEventStore { return &MemEventStore{seen: map[string]*Event{}} }

func (s *MemEventStore) Insert(_ context.Context, e *Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.Channel + "\x00" + e.EventID
	if _, ok := s.seen[key]; ok {
		return true, nil
	}
	cp := *e
	s.seen[key] = &cp
	return false, nil
}

func (s *MemEventStore) MarkProcessed(_ context.Context, id string, processErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.seen {
		if e.ID == id {
			if processErr != nil {
				msg := processErr.Error()
				e.ProcessError = &msg
			} else {
				now := time.Now()
				e.ProcessedAt = &now
				e.ProcessError = nil
			}
		}
	}
	return nil
}

// Count reports stored events; test helper.
func (s *MemEventStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
