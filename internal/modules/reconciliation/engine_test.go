package reconciliation

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
)

type staticSource struct {
	recs []BankRecord
}

func (s *staticSource) Fetch(_ context.Context, _, _ time.Time) ([]BankRecord, error) {
	return s.recs, nil
}

var testDay = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *payments.MemStore, ref, status, amount string, utr string) {
	t.Helper()
	p := &payments.Payment{
		ID:                 ref + "-id",
		Reference:          ref,
		VendorCode:         "VEND123",
		DebitAccount:       "1111222233",
		BeneficiaryName:    "Acme Supplies",
		BeneficiaryAccount: "9876543210",
		BankCode:           "HDFC0001234",
		Amount:             decimal.RequireFromString(amount),
		Currency:           "INR",
		PaymentDate:        testDay,
		Status:             status,
	}
	if utr != "" {
		p.UTRNumber = &utr
	}
	if err := store.Create(context.Background(), p); err != nil {
		t.Fatalf("seed %s: %v", ref, err)
	}
}

func bankRec(ref, status, amount string) BankRecord {
	return BankRecord{
		Reference: ref,
		Amount:    decimal.RequireFromString(amount),
		Status:    status,
		Date:      testDay,
	}
}

func newTestEngine(store *payments.MemStore, recs []BankRecord) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, &staticSource{recs: recs}, logger)
}

func TestReconcileCountsAndArithmetic(t *testing.T) {
	store := payments.NewMemStore()
	seed(t, store, "PAY-A1", payments.StatusCompleted, "100.00", "")
	seed(t, store, "PAY-A2", payments.StatusCompleted, "200.00", "")
	seed(t, store, "PAY-A3", payments.StatusCompleted, "300.00", "")
	seed(t, store, "PAY-A4", payments.StatusFailed, "400.00", "")
	seed(t, store, "PAY-A5", payments.StatusCompleted, "500.00", "")

	eng := newTestEngine(store, []BankRecord{
		bankRec("PAY-A1", "SUCCESS", "100.00"),
		bankRec("PAY-A2", "SUCCESS", "200.00"),
		bankRec("PAY-A3", "SUCCESS", "300.00"),
		bankRec("PAY-A4", "FAILED", "400.00"),
		// PAY-A5 missing from the statement
	})

	res, err := eng.Reconcile(context.Background(), testDay.AddDate(0, 0, -1), testDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if res.TotalRecords != 5 || res.MatchedRecords != 4 || res.UnmatchedRecords != 1 {
		t.Fatalf("counts = %d/%d/%d, want 5/4/1", res.TotalRecords, res.MatchedRecords, res.UnmatchedRecords)
	}
	if res.MatchedRecords+res.UnmatchedRecords != res.TotalRecords {
		t.Fatalf("matched+unmatched != total")
	}
	if !res.TotalAmount.Equal(decimal.RequireFromString("1500.00")) {
		t.Fatalf("total amount = %s", res.TotalAmount)
	}
	if !res.MatchedAmount.Equal(decimal.RequireFromString("1000.00")) {
		t.Fatalf("matched amount = %s", res.MatchedAmount)
	}

	if len(res.Mismatches) != 1 {
		t.Fatalf("mismatches = %d, want 1", len(res.Mismatches))
	}
	mm := res.Mismatches[0]
	if mm.PaymentReference != "PAY-A5" || mm.Field != FieldPresence {
		t.Fatalf("unexpected mismatch %+v", mm)
	}
}

func TestReconcileAmountAndStatusMismatch(t *testing.T) {
	store := payments.NewMemStore()
	seed(t, store, "PAY-B1", payments.StatusCompleted, "250.00", "")
	seed(t, store, "PAY-B2", payments.StatusCompleted, "90.00", "")

	eng := newTestEngine(store, []BankRecord{
		bankRec("PAY-B1", "SUCCESS", "255.00"), // amount drifted
		bankRec("PAY-B2", "FAILED", "90.00"),   // bank disagrees on outcome
	})

	res, err := eng.Reconcile(context.Background(), testDay, testDay)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.MatchedRecords != 0 || res.UnmatchedRecords != 2 {
		t.Fatalf("counts = %d matched / %d unmatched", res.MatchedRecords, res.UnmatchedRecords)
	}

	byField := map[string]Mismatch{}
	for _, mm := range res.Mismatches {
		byField[mm.Field] = mm
	}
	am, ok := byField[FieldAmount]
	if !ok || am.Expected != "250.00" || am.Actual != "255.00" {
		t.Fatalf("amount mismatch = %+v", am)
	}
	st, ok := byField[FieldStatus]
	if !ok || st.Expected != payments.StatusCompleted || st.Actual != payments.StatusFailed {
		t.Fatalf("status mismatch = %+v", st)
	}
}

func TestReconcileNonTerminalIsInconclusive(t *testing.T) {
	store := payments.NewMemStore()
	seed(t, store, "PAY-C1", payments.StatusProcessing, "75.00", "")

	eng := newTestEngine(store, []BankRecord{
		bankRec("PAY-C1", "SUCCESS", "75.00"),
	})

	res, err := eng.Reconcile(context.Background(), testDay, testDay)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.MatchedRecords != 0 || res.UnmatchedRecords != 1 {
		t.Fatalf("non-terminal payment must not match: %+v", res)
	}
	if len(res.Mismatches) != 1 || res.Mismatches[0].Actual != payments.StatusProcessing {
		t.Fatalf("mismatch = %+v", res.Mismatches)
	}
}

func TestReconcileMatchesByUTRFallback(t *testing.T) {
	store := payments.NewMemStore()
	seed(t, store, "PAY-D1", payments.StatusCompleted, "60.00", "UTR555")

	// Bank truncated the reference but carries the UTR.
	rec := bankRec("", "SUCCESS", "60.00")
	rec.UTR = "UTR555"
	eng := newTestEngine(store, []BankRecord{rec})

	res, err := eng.Reconcile(context.Background(), testDay, testDay)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.MatchedRecords != 1 {
		t.Fatalf("UTR fallback did not match: %+v", res)
	}
}

func TestLocalDirSourceParsesAndFilters(t *testing.T) {
	dir := t.TempDir()
	csv := "reference,utr,amount,status,date\n" +
		"PAY-E1,UTR1,100.00,SUCCESS,2026-08-20\n" +
		"PAY-E2,UTR2,200.50,FAILED,2026-08-21\n" +
		"PAY-E3,UTR3,300.00,SUCCESS,2026-09-05\n"
	if err := os.WriteFile(filepath.Join(dir, "stmt-0820.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewLocalDirSource(dir)
	recs, err := src.Fetch(context.Background(),
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2 (September row filtered)", len(recs))
	}
	if recs[0].Reference != "PAY-E1" || !recs[0].Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("first record = %+v", recs[0])
	}
	if recs[1].Status != "FAILED" {
		t.Fatalf("second record status = %s", recs[1].Status)
	}
}

func TestLocalDirSourceRejectsBadRow(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("PAY-F1,UTR1,not-a-number,SUCCESS,2026-08-20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewLocalDirSource(dir).Fetch(context.Background(), testDay, testDay)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
