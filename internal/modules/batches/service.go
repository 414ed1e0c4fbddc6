package batches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/reconciliation"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

// Orchestrator is the per-payment port; the batch never talks to the bank
// itself. Members are registered at batch creation and pushed to the bank
// only after approval.
type Orchestrator interface {
	CreatePayment(ctx context.Context, req payments.ProcessRequest) (*payments.Payment, error)
	SubmitPayment(ctx context.Context, ref string) (*payments.Result, error)
}

// Reconciler runs a statement reconciliation pass over a date range.
type Reconciler interface {
	Reconcile(ctx context.Context, from, to time.Time) (*reconciliation.Result, error)
}

type Coordinator struct {
	store      Store
	orch       Orchestrator
	paymentsDB payments.Store // batch linkage on member payments
	logger     *slog.Logger
}

func NewCoordinator(store Store, orch Orchestrator, pstore payments.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, orch: orch, paymentsDB: pstore, logger: logger}
}

type ItemResult struct {
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type BatchResult struct {
	Reference    string          `json:"reference"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaymentCount int             `json:"payment_count"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	Items        []ItemResult    `json:"items"`
}

func newBatchReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BATCH-" + strings.ToUpper(raw[:12])
}

// CreateBatch registers every member payment in PENDING without touching the
// bank. One invalid member never aborts the pass; it is recorded as a failed
// item and the loop continues. The batch stays PENDING until moderation.
func (c *Coordinator) CreateBatch(ctx context.Context, reqs []payments.ProcessRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, apperr.InvalidErr("batch is empty", nil)
	}

	total := decimal.Zero
	for _, r := range reqs {
		total = total.Add(r.Amount)
	}

	now := time.Now()
	b := &Batch{
		ID:           uuid.NewString(),
		Reference:    newBatchReference(),
		TotalAmount:  total,
		PaymentCount: len(reqs),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.store.Create(ctx, b); err != nil {
		return nil, apperr.Wrap(err)
	}

	items := make([]ItemResult, 0, len(reqs))
	failure := 0
	for i, req := range reqs {
		p, err := c.orch.CreatePayment(ctx, req)
		if err != nil {
			// no payment row exists for a rejected member; the miss is carried
			// on the batch counters instead
			failure++
			items = append(items, ItemResult{Status: payments.StatusFailed, Error: apperr.PublicMessage(err)})
			c.logger.WarnContext(ctx, "batch_item_rejected",
				"batch", b.Reference, "item", i, "err", err)
			continue
		}

		items = append(items, ItemResult{Reference: p.Reference, Status: p.Status})
		// batch ownership on the member payment
		_ = c.paymentsDB.Update(ctx, p.Reference, map[string]any{"batch_id": b.ID})
	}

	if failure > 0 {
		if err := c.store.Update(ctx, b.Reference, map[string]any{"failure_count": failure}); err != nil {
			return nil, apperr.Wrap(err)
		}
	}

	return &BatchResult{
		Reference:    b.Reference,
		Status:       StatusPending,
		TotalAmount:  total,
		PaymentCount: len(reqs),
		FailureCount: failure,
		Items:        items,
	}, nil
}

// SubmitBatch pushes every registered member to the bank. Approval is the
// gate; an unapproved batch conflicts. One failing member never aborts the
// pass, so success+failure always reaches the member count.
func (c *Coordinator) SubmitBatch(ctx context.Context, ref string) (*BatchResult, error) {
	b, err := c.GetBatch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusApproved {
		return nil, apperr.ConflictErr(fmt.Sprintf("batch in status %s cannot be submitted", b.Status))
	}
	if err := c.store.Update(ctx, ref, map[string]any{"status": StatusProcessing}); err != nil {
		return nil, apperr.Wrap(err)
	}

	members, err := c.paymentsDB.ListByBatchID(ctx, b.ID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	items := make([]ItemResult, 0, len(members))
	// members rejected at creation never got a payment row; they stay failed
	success, failure := 0, b.PaymentCount-len(members)
	for _, m := range members {
		res, err := c.orch.SubmitPayment(ctx, m.Reference)
		if err != nil {
			failure++
			items = append(items, ItemResult{Reference: m.Reference, Status: payments.StatusFailed, Error: apperr.PublicMessage(err)})
			c.logger.WarnContext(ctx, "batch_item_failed",
				"batch", b.Reference, "payment", m.Reference, "err", err)
			continue
		}

		items = append(items, ItemResult{Reference: res.Reference, Status: res.Status, Error: res.Message})
		switch {
		case res.Status == payments.StatusCompleted:
			success++
		case payments.IsTerminal(res.Status):
			failure++
			_ = c.paymentsDB.AppendRemark(ctx, res.Reference,
				fmt.Sprintf("batch %s: member payment ended %s", b.Reference, res.Status))
		}
	}

	status := StatusCompleted
	if failure > 0 {
		status = StatusFailed
	}
	if err := c.store.Update(ctx, b.Reference, map[string]any{
		"status":        status,
		"success_count": success,
		"failure_count": failure,
	}); err != nil {
		return nil, apperr.Wrap(err)
	}

	return &BatchResult{
		Reference:    b.Reference,
		Status:       status,
		TotalAmount:  b.TotalAmount,
		PaymentCount: b.PaymentCount,
		SuccessCount: success,
		FailureCount: failure,
		Items:        items,
	}, nil
}

func (c *Coordinator) GetBatch(ctx context.Context, ref string) (*Batch, error) {
	b, err := c.store.GetByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("batch not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return b, nil
}

// ApproveBatch / RejectBatch gate a PENDING batch before submission.
func (c *Coordinator) ApproveBatch(ctx context.Context, ref string) (*Batch, error) {
	return c.moderate(ctx, ref, StatusApproved)
}

func (c *Coordinator) RejectBatch(ctx context.Context, ref string) (*Batch, error) {
	return c.moderate(ctx, ref, StatusRejected)
}

func (c *Coordinator) moderate(ctx context.Context, ref, to string) (*Batch, error) {
	b, err := c.GetBatch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, apperr.ConflictErr(fmt.Sprintf("batch in status %s cannot be moderated", b.Status))
	}
	if err := c.store.Update(ctx, ref, map[string]any{"status": to}); err != nil {
		return nil, apperr.Wrap(err)
	}
	b.Status = to
	return b, nil
}

// ReconcileBatch runs a statement pass over the date range and records the
// verdict on the batch: RECONCILED when no mismatch touches a member payment,
// RECONCILIATION_FAILED otherwise. Only a submitted batch can be reconciled.
func (c *Coordinator) ReconcileBatch(ctx context.Context, ref string, rec Reconciler, from, to time.Time) (*reconciliation.Result, error) {
	b, err := c.GetBatch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusCompleted && b.Status != StatusFailed {
		return nil, apperr.ConflictErr(fmt.Sprintf("batch in status %s cannot be reconciled", b.Status))
	}

	members, err := c.paymentsDB.ListByBatchID(ctx, b.ID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	memberRefs := make(map[string]bool, len(members))
	for _, m := range members {
		memberRefs[m.Reference] = true
	}

	res, err := rec.Reconcile(ctx, from, to)
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	clean := true
	for _, mm := range res.Mismatches {
		if memberRefs[mm.PaymentReference] {
			clean = false
			break
		}
	}
	if err := c.MarkReconciled(ctx, ref, clean); err != nil {
		return nil, err
	}
	return res, nil
}

// MarkReconciled records the outcome of a reconciliation run against the
// batch. Member payments stay untouched; reconciliation is read-only on them.
func (c *Coordinator) MarkReconciled(ctx context.Context, ref string, clean bool) error {
	status := StatusReconciled
	if !clean {
		status = StatusReconciliationFailed
	}
	if err := c.store.Update(ctx, ref, map[string]any{"status": status}); err != nil {
		return apperr.Wrap(err)
	}
	return nil
}
