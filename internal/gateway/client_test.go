package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/config"
)

func testConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:         baseURL,
		ProcessEndpoint: "/api/v1/payments",
		VerifyEndpoint:  "/api/v1/payments/status",
		APIKey:          "key-1",
		ClientID:        "client-1",
		Timeout:         2 * time.Second,
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		Multiplier:      2,
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
	}
}

func testRequest() PaymentRequest {
	return PaymentRequest{
		Reference:          "PAY-TEST0001",
		DebitAccount:       "1111222233",
		BeneficiaryAccount: "9876543210",
		BeneficiaryName:    "Acme Supplies",
		BankCode:           "HDFC0001234",
		Amount:             decimal.RequireFromString("1000.50"),
		Currency:           "INR",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestIdempotencyKeyDeterministic(t *testing.T) {
	a := IdempotencyKey("111", "222", decimal.RequireFromString("1000.50"))
	b := IdempotencyKey("111", "222", decimal.RequireFromString("1000.5"))
	if a != b {
		t.Fatalf("same logical content produced different keys:\n%s\n%s", a, b)
	}
	c := IdempotencyKey("111", "222", decimal.RequireFromString("1000.51"))
	if a == c {
		t.Fatal("different amounts must produce different keys")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", a)
	}
}

func TestSubmitSuccessMapsResponse(t *testing.T) {
	var gotIdem, gotAPIKey, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdem = r.Header.Get("Idempotency-Key")
		gotAPIKey = r.Header.Get("X-API-Key")
		gotReqID = r.Header.Get("X-Request-ID")

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["value_date"] == "" {
			t.Error("value_date missing from request body")
		}
		if body["end_to_end_id"] == "" {
			t.Error("end_to_end_id missing from request body")
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":            true,
			"transaction_id":     "TXN1",
			"status":             "SUCCESS",
			"status_code":        "00",
			"status_description": "processed",
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), quietLogger())
	res, err := c.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != StatusSuccess || !res.Known {
		t.Errorf("status = %q (known=%v), want SUCCESS", res.Status, res.Known)
	}
	if res.TransactionID != "TXN1" {
		t.Errorf("transaction id = %q", res.TransactionID)
	}
	req := testRequest()
	if want := IdempotencyKey(req.DebitAccount, req.BeneficiaryAccount, req.Amount); gotIdem != want {
		t.Errorf("idempotency key header = %q, want %q", gotIdem, want)
	}
	if gotAPIKey != "key-1" {
		t.Errorf("expected api-key scheme, got X-API-Key=%q", gotAPIKey)
	}
	if gotReqID == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestRetryBoundOn5xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), quietLogger())
	_, err := c.Submit(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error from permanently failing endpoint")
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want exactly 3", got)
	}
	ge, ok := AsError(err)
	if !ok || ge.Kind != KindExhausted {
		t.Errorf("error = %v, want kind=exhausted", err)
	}
	if ge.HTTPStatus != http.StatusBadGateway {
		t.Errorf("HTTPStatus = %d, want 502", ge.HTTPStatus)
	}
}

func TestPermanent4xxNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad beneficiary account", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), quietLogger())
	_, err := c.Submit(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected permanent gateway error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", got)
	}
	ge, ok := AsError(err)
	if !ok || ge.Kind != KindPermanent {
		t.Fatalf("error = %v, want kind=permanent", err)
	}
	if ge.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatus = %d, want 422", ge.HTTPStatus)
	}
}

func TestNotFoundIsDistinctOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), quietLogger())
	res, err := c.CheckStatus(context.Background(), "TXN-MISSING")
	if err != nil {
		t.Fatalf("not-found must not be an error, got %v", err)
	}
	if !res.NotFound {
		t.Error("expected NotFound result")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		bank  string
		want  string
		known bool
	}{
		{"SUCCESS", StatusSuccess, true},
		{"completed", StatusSuccess, true},
		{"Pending", StatusPending, true},
		{"IN_PROGRESS", StatusPending, true},
		{"processing", StatusPending, true},
		{"FAILED", StatusFailed, true},
		{"rejected", StatusFailed, true},
		{"DECLINED", StatusFailed, true},
		{"cancelled", StatusFailed, true},
		{"ON_HOLD", "ON_HOLD", false},
		// unrecognized statuses pass through exactly as sent
		{"On_Hold", "On_Hold", false},
		{" awaiting_funds ", " awaiting_funds ", false},
	}
	for _, tc := range cases {
		res := mapResponse(bankPaymentResponse{Status: tc.bank})
		if res.Status != tc.want || res.Known != tc.known {
			t.Errorf("mapResponse(%q) = (%q, %v), want (%q, %v)", tc.bank, res.Status, res.Known, tc.want, tc.known)
		}
	}
}

func TestAuthSchemePriority(t *testing.T) {
	seen := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen["api_key"] = r.Header.Get("X-API-Key")
		seen["auth"] = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "status": "SUCCESS"})
	}))
	defer srv.Close()

	// bearer configured alongside api-key: api-key wins
	cfg := testConfig(srv.URL)
	cfg.BearerToken = "tok-1"
	c := NewClient(cfg, quietLogger())
	if _, err := c.CheckStatus(context.Background(), "TXN1"); err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if seen["api_key"] != "key-1" || seen["auth"] != "" {
		t.Errorf("api-key scheme should win, saw %v", seen)
	}

	// api-key incomplete (no client id): falls through to bearer
	cfg.ClientID = ""
	c = NewClient(cfg, quietLogger())
	if _, err := c.CheckStatus(context.Background(), "TXN1"); err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if seen["auth"] != "Bearer tok-1" {
		t.Errorf("expected bearer fallback, saw %v", seen)
	}
}

func TestTransientThenSuccess(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "transaction_id": "TXN9", "status": "PENDING"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), quietLogger())
	res, err := c.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Submit after transient failures: %v", err)
	}
	if res.Status != StatusPending || res.TransactionID != "TXN9" {
		t.Errorf("result = %+v", res)
	}
}
