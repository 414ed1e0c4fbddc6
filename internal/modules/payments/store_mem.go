package payments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store with the same transition semantics as the
// gorm implementation. Used by tests and the mock tooling.
type MemStore struct {
	mu        sync.Mutex
	byRef     map[string]*Payment
	reversals []Reversal
}

func NewMemStore() *MemStore {
	return &MemStore{byRef: map[string]*Payment{}}
}

func (s *MemStore) Create(_ context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.byRef[p.Reference] = &cp
	return nil
}

func (s *MemStore) GetByReference(_ context.Context, ref string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) GetByTransactionID(_ context.Context, txnID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byRef {
		if p.TransactionID != nil && *p.TransactionID == txnID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) Transition(_ context.Context, ref, from, to string, fields map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byRef[ref]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	applyFields(p, fields)
	p.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemStore) Update(_ context.Context, ref string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byRef[ref]
	if !ok {
		return ErrNotFound
	}
	applyFields(p, fields)
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) AppendRemark(_ context.Context, ref, remark string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byRef[ref]
	if !ok {
		return ErrNotFound
	}
	if p.Remarks == nil || *p.Remarks == "" {
		r := remark
		p.Remarks = &r
	} else {
		r := *p.Remarks + "\n" + remark
		p.Remarks = &r
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) ListByDateRange(_ context.Context, from, to time.Time) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, p := range s.byRef {
		if !p.PaymentDate.Before(from) && !p.PaymentDate.After(to) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemStore) ListByBatchID(_ context.Context, batchID string) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, p := range s.byRef {
		if p.BatchID != nil && *p.BatchID == batchID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Reference < out[j].Reference
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) CreateReversal(_ context.Context, r *Reversal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reversals = append(s.reversals, *r)
	return nil
}

// Reversals returns a copy of the recorded reversals.
func (s *MemStore) Reversals() []Reversal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reversal, len(s.reversals))
	copy(out, s.reversals)
	return out
}

func applyFields(p *Payment, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "transaction_id":
			p.TransactionID = asStringPtr(v)
		case "bank_reference":
			p.BankReference = asStringPtr(v)
		case "utr_number":
			p.UTRNumber = asStringPtr(v)
		case "error_message":
			p.ErrorMessage = asStringPtr(v)
		case "reconciled":
			if b, ok := v.(bool); ok {
				p.Reconciled = b
			}
		case "reconciliation_ref":
			p.ReconciliationRef = asStringPtr(v)
		case "approval_status":
			p.ApprovalStatus = asStringPtr(v)
		case "exported":
			if b, ok := v.(bool); ok {
				p.Exported = b
			}
		case "voided":
			if b, ok := v.(bool); ok {
				p.Voided = b
			}
		case "batch_id":
			p.BatchID = asStringPtr(v)
		}
	}
}

func asStringPtr(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case *string:
		return t
	}
	return nil
}
