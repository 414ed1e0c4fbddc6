package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/gateway"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/batches"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/callbacks"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/reconciliation"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/vendors"
)

const testWebhookSecret = "whsec_test"

type routerGateway struct {
	SubmitFn func(req gateway.PaymentRequest) (*gateway.Result, error)
}

func (g *routerGateway) Submit(_ context.Context, req gateway.PaymentRequest) (*gateway.Result, error) {
	if g.SubmitFn != nil {
		return g.SubmitFn(req)
	}
	return &gateway.Result{Success: true, Status: gateway.StatusSuccess, Known: true, TransactionID: "TXN-HTTP-1"}, nil
}

func (g *routerGateway) CheckStatus(_ context.Context, _ string) (*gateway.Result, error) {
	return &gateway.Result{Success: true, Status: gateway.StatusSuccess, Known: true}, nil
}

type noopNotifier struct{}

func (noopNotifier) PaymentFinalized(_ context.Context, _ payments.Payment) error { return nil }

func newTestRouter(t *testing.T, gw payments.Gateway) (*gin.Engine, *payments.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := payments.NewMemStore()
	vend := vendors.Static{
		"VEND123": {Code: "VEND123", Name: "Acme Supplies", AccountNumber: "9876543210", BankCode: "HDFC0001234", Active: true},
	}
	svc := payments.NewService(store, gw, vend, noopNotifier{}, "1111222233", logger)
	coord := batches.NewCoordinator(batches.NewMemStore(), svc, store, logger)
	cb := callbacks.NewService(callbacks.NewMemEventStore(), svc, testWebhookSecret, "h2h-token", logger)
	eng := reconciliation.NewEngine(store, &staticStatements{}, logger)

	r := NewRouter(Deps{
		Logger:        logger,
		Payments:      svc,
		PaymentsStore: store,
		Batches:       coord,
		Callbacks:     cb,
		Reconciler:    eng,
	})
	return r, store
}

type staticStatements struct {
	recs []reconciliation.BankRecord
}

func (s *staticStatements) Fetch(_ context.Context, _, _ time.Time) ([]reconciliation.BankRecord, error) {
	return s.recs, nil
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePaymentEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &routerGateway{})

	w := doJSON(r, http.MethodPost, "/api/payments", gin.H{
		"vendor_code": "VEND123",
		"amount":      "1500.00",
		"currency":    "INR",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res payments.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != payments.StatusCompleted || !strings.HasPrefix(res.Reference, "PAY-") {
		t.Fatalf("result = %+v", res)
	}

	// Round-trip through the read endpoint.
	w = doJSON(r, http.MethodGet, "/api/payments/"+res.Reference, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestCreatePaymentValidationBody(t *testing.T) {
	r, _ := newTestRouter(t, &routerGateway{})

	w := doJSON(r, http.MethodPost, "/api/payments", gin.H{"currency": "INR"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Error     string            `json:"error"`
		RequestID string            `json:"request_id"`
		Fields    map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RequestID == "" {
		t.Fatal("request_id missing from error body")
	}
	if _, ok := body.Fields["vendor_code"]; !ok {
		t.Fatalf("fields = %v", body.Fields)
	}
}

func TestPaymentNotFound(t *testing.T) {
	r, _ := newTestRouter(t, &routerGateway{})
	w := doJSON(r, http.MethodGet, "/api/payments/PAY-DOESNOTEXIST", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCancelCompletedConflicts(t *testing.T) {
	r, _ := newTestRouter(t, &routerGateway{})

	w := doJSON(r, http.MethodPost, "/api/payments", gin.H{"vendor_code": "VEND123", "amount": "10.00"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var res payments.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	w = doJSON(r, http.MethodPost, "/api/payments/"+res.Reference+"/cancel", gin.H{"reason": "dup"})
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestBatchEndpointLifecycle(t *testing.T) {
	calls := 0
	gw := &routerGateway{SubmitFn: func(req gateway.PaymentRequest) (*gateway.Result, error) {
		calls++
		if calls == 2 {
			return nil, &gateway.Error{Kind: gateway.KindExhausted, Message: "bank down"}
		}
		return &gateway.Result{Success: true, Status: gateway.StatusSuccess, Known: true, TransactionID: fmt.Sprintf("TXN-%d", calls)}, nil
	}}
	r, _ := newTestRouter(t, gw)

	w := doJSON(r, http.MethodPost, "/api/batches", gin.H{
		"payments": []gin.H{
			{"vendor_code": "VEND123", "amount": "100.00"},
			{"vendor_code": "VEND123", "amount": "200.00"},
			{"vendor_code": "VEND123", "amount": "300.00"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var created batches.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != batches.StatusPending {
		t.Fatalf("created status = %s, want PENDING", created.Status)
	}
	if calls != 0 {
		t.Fatalf("bank called %d times before approval", calls)
	}

	// Submission before approval conflicts.
	w = doJSON(r, http.MethodPost, "/api/batches/"+created.Reference+"/submit", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("unapproved submit status = %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/batches/"+created.Reference+"/approve", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/api/batches/"+created.Reference+"/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	var res batches.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PaymentCount != 3 || res.SuccessCount != 2 || res.FailureCount != 1 {
		t.Fatalf("counts = %d/%d/%d", res.PaymentCount, res.SuccessCount, res.FailureCount)
	}
	if res.Status != batches.StatusFailed {
		t.Fatalf("batch status = %s", res.Status)
	}

	// A range with no payments and no statement records reconciles clean.
	w = doJSON(r, http.MethodPost, "/api/batches/"+created.Reference+"/reconcile?from=2000-01-01&to=2000-01-31", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d, body = %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodGet, "/api/batches/"+created.Reference, nil)
	var b batches.Batch
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Status != batches.StatusReconciled {
		t.Fatalf("reconciled status = %s", b.Status)
	}
}

func TestWebhookEndpointSignature(t *testing.T) {
	r, store := newTestRouter(t, &routerGateway{})

	w := doJSON(r, http.MethodPost, "/api/payments", gin.H{"vendor_code": "VEND123", "amount": "50.00"})
	var created payments.Result
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	payload, _ := json.Marshal(gin.H{
		"event_type":     "payment.status",
		"transaction_id": created.TransactionID,
		"status":         "SUCCESS",
		"utr_number":     "UTRHTTP1",
	})

	// Missing signature is rejected.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", bytes.NewReader(payload))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d", w2.Code)
	}

	// Valid signature lands the UTR on the payment.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/bank", bytes.NewReader(payload))
	req.Header.Set("X-Bank-Signature", callbacks.Signature([]byte(testWebhookSecret), payload))
	w2 = httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("signed status = %d, body = %s", w2.Code, w2.Body.String())
	}

	p, err := store.GetByReference(context.Background(), created.Reference)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.UTRNumber == nil || *p.UTRNumber != "UTRHTTP1" {
		t.Fatalf("utr not recorded: %+v", p.UTRNumber)
	}
}

func TestH2HEndpoint(t *testing.T) {
	r, store := newTestRouter(t, &routerGateway{})

	w := doJSON(r, http.MethodPost, "/api/payments", gin.H{"vendor_code": "VEND123", "amount": "75.00"})
	var created payments.Result
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	form := url.Values{"status": {"SUCCESS"}}
	req := httptest.NewRequest(http.MethodPost, "/payment-callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Transaction-ID", created.TransactionID)
	req.Header.Set("X-Callback-Token", "h2h-token")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("h2h status = %d, body = %s", w2.Code, w2.Body.String())
	}

	// Wrong token is unauthorized.
	req = httptest.NewRequest(http.MethodPost, "/payment-callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Transaction-ID", created.TransactionID)
	req.Header.Set("X-Callback-Token", "wrong")
	w2 = httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", w2.Code)
	}

	if _, err := store.GetByReference(context.Background(), created.Reference); err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestReconciliationEndpointValidatesRange(t *testing.T) {
	r, _ := newTestRouter(t, &routerGateway{})

	w := doJSON(r, http.MethodGet, "/api/reconciliation?from=bogus&to=2026-08-31", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/reconciliation?from=2026-08-01&to=2026-08-31", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res reconciliation.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalRecords != res.MatchedRecords+res.UnmatchedRecords {
		t.Fatalf("count arithmetic broken: %+v", res)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, &routerGateway{})
	w := doJSON(r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
