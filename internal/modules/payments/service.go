package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/gateway"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/vendors"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

// Gateway is the outbound bank port, satisfied by gateway.Client.
type Gateway interface {
	Submit(ctx context.Context, req gateway.PaymentRequest) (*gateway.Result, error)
	CheckStatus(ctx context.Context, referenceID string) (*gateway.Result, error)
}

// Notifier dispatches a vendor notification for a payment that reached a
// terminal state. Best effort; failures never affect payment state.
type Notifier interface {
	PaymentFinalized(ctx context.Context, p Payment) error
}

type Service struct {
	store        Store
	gw           Gateway
	vendors      vendors.Lookup
	notifier     Notifier
	debitAccount string
	logger       *slog.Logger

	notifyWG sync.WaitGroup
}

func NewService(store Store, gw Gateway, vend vendors.Lookup, notifier Notifier, debitAccount string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		gw:           gw,
		vendors:      vend,
		notifier:     notifier,
		debitAccount: debitAccount,
		logger:       logger,
	}
}

type Result struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// NewReference mints the internal payment reference. Assigned exactly once,
// never reused.
func NewReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PAY-" + strings.ToUpper(raw[:12])
}

// ProcessPayment drives one payment end to end: validate, persist, submit to
// the bank, map the outcome onto status, notify on terminal states. Gateway
// failures are captured on the record as FAILED; they never escape as faults.
func (s *Service) ProcessPayment(ctx context.Context, req ProcessRequest) (*Result, error) {
	p, err := s.CreatePayment(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.submitPending(ctx, p)
}

// CreatePayment validates and records a payment in PENDING without touching
// the bank. Batch members are registered this way and submitted later.
func (s *Service) CreatePayment(ctx context.Context, req ProcessRequest) (*Payment, error) {
	if req.VendorCode != "" {
		v, err := s.vendors.ByCode(ctx, req.VendorCode)
		switch {
		case errors.Is(err, vendors.ErrNotFound):
			return nil, apperr.InvalidErr("unknown vendor", map[string]string{"vendor_code": "vendor not found"})
		case err != nil:
			return nil, apperr.Wrap(err)
		default:
			// vendor master fills whatever the request left blank
			if req.BeneficiaryAccount == "" {
				req.BeneficiaryAccount = v.AccountNumber
			}
			if req.BankCode == "" {
				req.BankCode = v.BankCode
			}
			if req.BeneficiaryName == "" {
				req.BeneficiaryName = v.Name
			}
		}
	}
	if req.DebitAccount == "" {
		req.DebitAccount = s.debitAccount
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	if verrs := Validate(req); len(verrs) > 0 {
		return nil, apperr.InvalidErr("payment validation failed", FieldMap(verrs))
	}

	now := time.Now()
	p := &Payment{
		ID:                 uuid.NewString(),
		Reference:          NewReference(),
		VendorCode:         req.VendorCode,
		DebitAccount:       req.DebitAccount,
		BeneficiaryName:    req.BeneficiaryName,
		BeneficiaryAccount: req.BeneficiaryAccount,
		BankCode:           req.BankCode,
		Amount:             req.Amount,
		Currency:           req.Currency,
		PaymentDate:        now,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.InvoiceNumber != "" {
		p.InvoiceNumber = &req.InvoiceNumber
	}
	if req.Description != "" {
		p.Description = &req.Description
	}
	p.DueDate = req.DueDate

	if err := s.store.Create(ctx, p); err != nil {
		return nil, apperr.Wrap(err)
	}
	return p, nil
}

// SubmitPayment pushes a previously created payment to the bank. Only
// PENDING payments are eligible.
func (s *Service) SubmitPayment(ctx context.Context, ref string) (*Result, error) {
	p, err := s.store.GetByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if p.Status != StatusPending {
		return nil, apperr.ConflictErr(fmt.Sprintf("payment in status %s cannot be submitted", p.Status))
	}
	return s.submitPending(ctx, p)
}

func (s *Service) submitPending(ctx context.Context, p *Payment) (*Result, error) {
	// CAS into PROCESSING; a concurrent cancel that already won leaves the
	// payment CANCELLED and we stop before any network call.
	ok, err := s.store.Transition(ctx, p.Reference, StatusPending, StatusProcessing, nil)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return s.currentResult(ctx, p.Reference, "payment was cancelled before submission")
	}

	res, gerr := s.gw.Submit(ctx, gateway.PaymentRequest{
		Reference:          p.Reference,
		DebitAccount:       p.DebitAccount,
		BeneficiaryAccount: p.BeneficiaryAccount,
		BeneficiaryName:    p.BeneficiaryName,
		BankCode:           p.BankCode,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Details:            strOrEmpty(p.Description),
	})
	if gerr != nil {
		return s.failPayment(ctx, p.Reference, gerr)
	}
	return s.applySubmitResult(ctx, p.Reference, res)
}

func (s *Service) failPayment(ctx context.Context, ref string, cause error) (*Result, error) {
	msg := cause.Error()
	if len(msg) > 250 {
		msg = msg[:250]
	}
	ok, err := s.store.Transition(ctx, ref, StatusProcessing, StatusFailed, map[string]any{"error_message": msg})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		// Lost the race: something else (e.g. a callback) already moved the
		// payment on. Report what the store holds, not FAILED.
		return s.currentResult(ctx, ref, msg)
	}
	_ = s.store.AppendRemark(ctx, ref, "gateway error: "+msg)
	s.notifyAsync(ref)
	return &Result{Reference: ref, Status: StatusFailed, Message: msg}, nil
}

func (s *Service) applySubmitResult(ctx context.Context, ref string, res *gateway.Result) (*Result, error) {
	fields := map[string]any{}
	if res.TransactionID != "" {
		fields["transaction_id"] = res.TransactionID
	}

	switch {
	case res.NotFound:
		return s.failPayment(ctx, ref, errors.New("bank did not recognize the submission"))

	case res.Known && res.Status == gateway.StatusSuccess:
		fields["error_message"] = nil
		ok, err := s.store.Transition(ctx, ref, StatusProcessing, StatusCompleted, fields)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if !ok {
			return s.currentResult(ctx, ref, res.Description)
		}
		s.notifyAsync(ref)
		return &Result{Reference: ref, Status: StatusCompleted, TransactionID: res.TransactionID, Message: res.Description}, nil

	case res.Known && res.Status == gateway.StatusFailed:
		cause := res.Description
		if cause == "" {
			cause = "bank reported failure"
		}
		return s.failPayment(ctx, ref, errors.New(cause))

	case res.Known && res.Status == gateway.StatusPending:
		if len(fields) > 0 {
			if err := s.store.Update(ctx, ref, fields); err != nil {
				return nil, apperr.Wrap(err)
			}
		}
		return &Result{Reference: ref, Status: StatusProcessing, TransactionID: res.TransactionID, Message: res.Description}, nil

	default:
		// unknown bank status: keep PROCESSING, record the verbatim value
		if len(fields) > 0 {
			if err := s.store.Update(ctx, ref, fields); err != nil {
				return nil, apperr.Wrap(err)
			}
		}
		_ = s.store.AppendRemark(ctx, ref, "bank returned unrecognized status: "+res.Status)
		return &Result{Reference: ref, Status: StatusProcessing, TransactionID: res.TransactionID, Message: res.Description}, nil
	}
}

// CheckPaymentStatus re-queries the bank for non-terminal payments. Terminal
// payments answer from the store without a network call.
func (s *Service) CheckPaymentStatus(ctx context.Context, ref string) (*Result, error) {
	p, err := s.store.GetByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if IsTerminal(p.Status) {
		return resultFrom(p), nil
	}

	lookup := p.Reference
	if p.TransactionID != nil && *p.TransactionID != "" {
		lookup = *p.TransactionID
	}
	res, gerr := s.gw.CheckStatus(ctx, lookup)
	if gerr != nil {
		// a failed status query says nothing about the payment itself
		return nil, apperr.UnavailableErr("bank status lookup unavailable", gerr)
	}
	if res.NotFound {
		_ = s.store.AppendRemark(ctx, ref, "status check: payment unknown to bank")
		out := resultFrom(p)
		out.Message = "payment unknown to bank"
		return out, nil
	}

	next := ""
	switch {
	case res.Known && res.Status == gateway.StatusSuccess:
		next = StatusCompleted
	case res.Known && res.Status == gateway.StatusFailed:
		next = StatusFailed
	}
	if next == "" {
		// still pending or unknown at the bank
		return resultFrom(p), nil
	}
	return s.applyStatus(ctx, p, next, res.Description)
}

// CancelPayment is a compare-and-set: only a PENDING payment can move to
// CANCELLED, and exactly one of a cancel/submit race wins.
func (s *Service) CancelPayment(ctx context.Context, ref, reason string) (*Result, error) {
	p, err := s.store.GetByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	ok, err := s.store.Transition(ctx, ref, StatusPending, StatusCancelled, nil)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr(fmt.Sprintf("payment in status %s can no longer be cancelled", p.Status))
	}
	remark := "cancelled"
	if reason != "" {
		remark = "cancelled: " + reason
	}
	_ = s.store.AppendRemark(ctx, ref, remark)
	return &Result{Reference: ref, Status: StatusCancelled}, nil
}

// ReversePayment moves a COMPLETED payment to REVERSED and writes the
// explicit reversal record. The only legal exit from a terminal success.
func (s *Service) ReversePayment(ctx context.Context, ref, reason string) (*Result, error) {
	p, err := s.store.GetByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if p.Status != StatusCompleted {
		return nil, apperr.ConflictErr("only completed payments can be reversed")
	}

	ok, err := s.store.Transition(ctx, ref, StatusCompleted, StatusReversed, nil)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		return nil, apperr.ConflictErr("payment was modified concurrently; reversal not applied")
	}

	rev := &Reversal{
		ID:        uuid.NewString(),
		PaymentID: p.ID,
		Reference: p.Reference,
		Amount:    p.Amount,
		Currency:  p.Currency,
		CreatedAt: time.Now(),
	}
	if reason != "" {
		rev.Reason = &reason
	}
	if err := s.store.CreateReversal(ctx, rev); err != nil {
		return nil, apperr.Wrap(err)
	}
	remark := "reversed"
	if reason != "" {
		remark = "reversed: " + reason
	}
	_ = s.store.AppendRemark(ctx, ref, remark)
	return &Result{Reference: ref, Status: StatusReversed}, nil
}

// UpdatePaymentStatus is the callback/administrative path. Remarks are always
// appended; a terminal status is never regressed; repeated delivery of the
// same status is a no-op apart from the remark, so no duplicate notification
// is sent.
func (s *Service) UpdatePaymentStatus(ctx context.Context, ref, status, remarks string) (*Result, error) {
	p, err := s.store.GetByReference(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFoundErr("payment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	if remarks != "" {
		_ = s.store.AppendRemark(ctx, ref, remarks)
	}

	norm, known := NormalizeBankStatus(status)
	if !known {
		_ = s.store.AppendRemark(ctx, ref, "ignored unrecognized status update: "+norm)
		return resultFrom(p), nil
	}
	return s.applyStatus(ctx, p, norm, "")
}

// applyStatus performs the guarded transition with monotonicity rules.
func (s *Service) applyStatus(ctx context.Context, p *Payment, next, description string) (*Result, error) {
	if p.Status == next {
		return resultFrom(p), nil
	}
	if IsTerminal(p.Status) {
		// last-write-wins stops at terminal states: note the attempt, keep the status
		_ = s.store.AppendRemark(ctx, p.Reference,
			fmt.Sprintf("ignored status update to %s; payment already %s", next, p.Status))
		return resultFrom(p), nil
	}

	fields := map[string]any{}
	if description != "" && next == StatusFailed {
		fields["error_message"] = description
	}
	ok, err := s.store.Transition(ctx, p.Reference, p.Status, next, fields)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if !ok {
		// a concurrent writer moved the payment first; re-read and re-apply once
		cur, err := s.store.GetByReference(ctx, p.Reference)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if cur.Status == next || IsTerminal(cur.Status) {
			return resultFrom(cur), nil
		}
		ok, err = s.store.Transition(ctx, p.Reference, cur.Status, next, fields)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if !ok {
			cur, _ = s.store.GetByReference(ctx, p.Reference)
			return resultFrom(cur), nil
		}
	}
	if IsTerminal(next) {
		s.notifyAsync(p.Reference)
	}
	out := resultFrom(p)
	out.Status = next
	out.Message = description
	return out, nil
}

// HandleBankStatus resolves a bank-initiated status push (webhook or H2H) to
// a payment and applies it. transactionID is preferred; paymentRef is the
// fallback when the bank echoes our own reference. A non-empty utr is stored
// for reconciliation matching.
func (s *Service) HandleBankStatus(ctx context.Context, transactionID, paymentRef, status, message, utr string) error {
	var p *Payment
	var err error
	if transactionID != "" {
		p, err = s.store.GetByTransactionID(ctx, transactionID)
	}
	if (p == nil || errors.Is(err, ErrNotFound)) && paymentRef != "" {
		p, err = s.store.GetByReference(ctx, paymentRef)
	}
	if errors.Is(err, ErrNotFound) || p == nil {
		return apperr.NotFoundErr("no payment for transaction")
	}
	if err != nil {
		return apperr.Wrap(err)
	}

	fields := map[string]any{}
	if utr != "" {
		fields["utr_number"] = utr
	}
	if transactionID != "" && (p.TransactionID == nil || *p.TransactionID == "") {
		fields["transaction_id"] = transactionID
	}
	if len(fields) > 0 {
		if err := s.store.Update(ctx, p.Reference, fields); err != nil {
			return apperr.Wrap(err)
		}
	}

	remark := fmt.Sprintf("bank callback: status=%s", status)
	if message != "" {
		remark += " message=" + message
	}
	_, err = s.UpdatePaymentStatus(ctx, p.Reference, status, remark)
	return err
}

func (s *Service) notifyAsync(ref string) {
	if s.notifier == nil {
		return
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p, err := s.store.GetByReference(ctx, ref)
		if err != nil {
			s.logger.Error("notification skipped, payment reload failed", "reference", ref, "err", err)
			return
		}
		if err := s.notifier.PaymentFinalized(ctx, *p); err != nil {
			// fire-and-forget: log and move on
			s.logger.Error("notification dispatch failed", "reference", ref, "err", err)
		}
	}()
}

// WaitNotifications blocks until in-flight notification goroutines drain.
// Used on shutdown.
func (s *Service) WaitNotifications() { s.notifyWG.Wait() }

func (s *Service) currentResult(ctx context.Context, ref, message string) (*Result, error) {
	p, err := s.store.GetByReference(ctx, ref)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	out := resultFrom(p)
	out.Message = message
	return out, nil
}

func resultFrom(p *Payment) *Result {
	out := &Result{Reference: p.Reference, Status: p.Status}
	if p.TransactionID != nil {
		out.TransactionID = *p.TransactionID
	}
	if p.ErrorMessage != nil {
		out.Message = *p.ErrorMessage
	}
	return out
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
