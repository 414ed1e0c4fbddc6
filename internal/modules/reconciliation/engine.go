package reconciliation

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
)

// PaymentSource is the slice of the payment store the engine reads from.
// It never writes back: reconciliation reports discrepancies, it does not
// resolve them.
type PaymentSource interface {
	ListByDateRange(ctx context.Context, from, to time.Time) ([]payments.Payment, error)
}

// StatementSource fetches bank-side records for a date range.
type StatementSource interface {
	Fetch(ctx context.Context, from, to time.Time) ([]BankRecord, error)
}

type Engine struct {
	payments   PaymentSource
	statements StatementSource
	logger     *slog.Logger
}

func NewEngine(p PaymentSource, s StatementSource, logger *slog.Logger) *Engine {
	return &Engine{payments: p, statements: s, logger: logger}
}

// Reconcile compares internal payments against the bank statement for the
// given range. Every internal payment counts exactly once, so
// MatchedRecords+UnmatchedRecords == TotalRecords always holds.
func (e *Engine) Reconcile(ctx context.Context, from, to time.Time) (*Result, error) {
	internal, err := e.payments.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	bank, err := e.statements.Fetch(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byRef := make(map[string]BankRecord, len(bank))
	byUTR := make(map[string]BankRecord)
	for _, rec := range bank {
		if rec.Reference != "" {
			byRef[rec.Reference] = rec
		}
		if rec.UTR != "" {
			byUTR[rec.UTR] = rec
		}
	}

	// Deterministic output regardless of store iteration order.
	sort.Slice(internal, func(i, j int) bool { return internal[i].Reference < internal[j].Reference })

	res := &Result{
		FromDate:      from,
		ToDate:        to,
		TotalAmount:   decimal.Zero,
		MatchedAmount: decimal.Zero,
	}

	for _, p := range internal {
		res.TotalRecords++
		res.TotalAmount = res.TotalAmount.Add(p.Amount)

		rec, found := byRef[p.Reference]
		if !found && p.UTRNumber != nil && *p.UTRNumber != "" {
			rec, found = byUTR[*p.UTRNumber]
		}

		switch {
		case !found:
			res.UnmatchedRecords++
			res.Mismatches = append(res.Mismatches, Mismatch{
				PaymentReference: p.Reference,
				Field:            FieldPresence,
				Expected:         "bank record",
				Actual:           "absent",
				Description:      "no bank statement record found for payment",
			})
		case !payments.IsTerminal(p.Status):
			// Cannot be conclusively matched while the payment may
			// still change state.
			res.UnmatchedRecords++
			res.Mismatches = append(res.Mismatches, Mismatch{
				PaymentReference: p.Reference,
				Field:            FieldStatus,
				Expected:         "terminal status",
				Actual:           p.Status,
				Description:      "payment had not reached a terminal status at reconciliation time",
			})
		default:
			mm := compareRecord(p, rec)
			if len(mm) == 0 {
				res.MatchedRecords++
				res.MatchedAmount = res.MatchedAmount.Add(p.Amount)
			} else {
				res.UnmatchedRecords++
				res.Mismatches = append(res.Mismatches, mm...)
			}
		}
	}

	e.logger.Info("reconciliation completed",
		slog.Time("from", from),
		slog.Time("to", to),
		slog.Int("total", res.TotalRecords),
		slog.Int("matched", res.MatchedRecords),
		slog.Int("unmatched", res.UnmatchedRecords),
		slog.Int("mismatches", len(res.Mismatches)),
	)
	return res, nil
}

func compareRecord(p payments.Payment, rec BankRecord) []Mismatch {
	var mm []Mismatch
	if !p.Amount.Equal(rec.Amount) {
		mm = append(mm, Mismatch{
			PaymentReference: p.Reference,
			Field:            FieldAmount,
			Expected:         p.Amount.StringFixed(2),
			Actual:           rec.Amount.StringFixed(2),
			Description:      "amount differs between ledger and bank statement",
		})
	}
	bankStatus, _ := payments.NormalizeBankStatus(rec.Status)
	if bankStatus != p.Status {
		mm = append(mm, Mismatch{
			PaymentReference: p.Reference,
			Field:            FieldStatus,
			Expected:         p.Status,
			Actual:           bankStatus,
			Description:      "status differs between ledger and bank statement",
		})
	}
	return mm
}
