package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/config"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/mask"
)

// Mapped gateway statuses. An unrecognized bank status is passed through
// verbatim in Result.Status with Known=false.
const (
	StatusSuccess = "SUCCESS"
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
)

type PaymentRequest struct {
	Reference          string
	DebitAccount       string
	BeneficiaryAccount string
	BeneficiaryName    string
	BankCode           string
	Amount             decimal.Decimal
	Currency           string
	Details            string
	Purpose            string
}

type Result struct {
	Success       bool
	TransactionID string
	Status        string // mapped status, or the verbatim bank value when Known is false
	Known         bool
	StatusCode    string
	Description   string
	Amount        decimal.Decimal
	Currency      string
	Fees          decimal.Decimal

	// NotFound marks the distinct "payment unknown to the bank" outcome. It is
	// not an error and is never retried.
	NotFound bool
}

type bankPaymentRequest struct {
	TransactionReference     string          `json:"transaction_reference"`
	DebitAccountNumber       string          `json:"debit_account_number"`
	BeneficiaryAccountNumber string          `json:"beneficiary_account_number"`
	BeneficiaryName          string          `json:"beneficiary_name"`
	BankCode                 string          `json:"bank_code"`
	Amount                   decimal.Decimal `json:"amount"`
	Currency                 string          `json:"currency"`
	ValueDate                string          `json:"value_date"`
	EndToEndID               string          `json:"end_to_end_id,omitempty"`
	PaymentDetails           string          `json:"payment_details,omitempty"`
	Purpose                  string          `json:"purpose,omitempty"`
}

type bankPaymentResponse struct {
	Success           bool             `json:"success"`
	TransactionID     string           `json:"transaction_id"`
	Status            string           `json:"status"`
	StatusCode        string           `json:"status_code"`
	StatusDescription string           `json:"status_description"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	Fees              *decimal.Decimal `json:"fees,omitempty"`
	ErrorCode         string           `json:"error_code,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
}

type Client struct {
	cfg     config.GatewayConfig
	http    *http.Client
	logger  *slog.Logger
	limiter *keyedLimiter

	now func() time.Time
}

func NewClient(cfg config.GatewayConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		limiter: newKeyedLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		now:     time.Now,
	}
}

// IdempotencyKey is a pure function of the logical payment content, so a
// retried submission of the same debit/beneficiary/amount maps to the same
// key regardless of call time.
func IdempotencyKey(debitAccount, beneficiaryAccount string, amount decimal.Decimal) string {
	sum := sha256.Sum256([]byte(debitAccount + "|" + beneficiaryAccount + "|" + amount.StringFixed(2)))
	return hex.EncodeToString(sum[:])
}

// Submit posts the payment to the bank's process endpoint. Value date is the
// submission date; the end-to-end id is freshly generated per call.
func (c *Client) Submit(ctx context.Context, req PaymentRequest) (*Result, error) {
	if err := c.limiter.Wait(ctx, req.DebitAccount); err != nil {
		return nil, &Error{Kind: KindTransient, Message: "rate limiter wait aborted", Err: err}
	}

	body := bankPaymentRequest{
		TransactionReference:     req.Reference,
		DebitAccountNumber:       req.DebitAccount,
		BeneficiaryAccountNumber: req.BeneficiaryAccount,
		BeneficiaryName:          req.BeneficiaryName,
		BankCode:                 req.BankCode,
		Amount:                   req.Amount,
		Currency:                 req.Currency,
		ValueDate:                c.now().Format("2006-01-02"),
		EndToEndID:               uuid.NewString(),
		PaymentDetails:           req.Details,
		Purpose:                  req.Purpose,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "marshal request", Err: err}
	}

	c.logger.DebugContext(ctx, "bank_submit",
		"reference", req.Reference,
		"debit_account", mask.Account(req.DebitAccount),
		"beneficiary_account", mask.Account(req.BeneficiaryAccount),
		"amount", req.Amount.StringFixed(2),
		"currency", req.Currency,
	)

	idemKey := IdempotencyKey(req.DebitAccount, req.BeneficiaryAccount, req.Amount)
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.ProcessEndpoint, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Idempotency-Key", idemKey)
		c.setCommonHeaders(r)
		return r, nil
	})
}

// CheckStatus looks up a previously submitted payment by its bank reference.
func (c *Client) CheckStatus(ctx context.Context, referenceID string) (*Result, error) {
	if err := c.limiter.Wait(ctx, "status"); err != nil {
		return nil, &Error{Kind: KindTransient, Message: "rate limiter wait aborted", Err: err}
	}

	url := c.cfg.BaseURL + strings.TrimRight(c.cfg.VerifyEndpoint, "/") + "/" + referenceID
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		c.setCommonHeaders(r)
		return r, nil
	})
}

// setCommonHeaders applies exactly one auth scheme, in priority order:
// API-key+client-id, then bearer, then basic. First fully configured wins.
func (c *Client) setCommonHeaders(r *http.Request) {
	switch {
	case c.cfg.APIKey != "" && c.cfg.ClientID != "":
		r.Header.Set("X-API-Key", c.cfg.APIKey)
		r.Header.Set("X-Client-ID", c.cfg.ClientID)
	case c.cfg.BearerToken != "":
		r.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	case c.cfg.BasicUser != "" && c.cfg.BasicPass != "":
		r.SetBasicAuth(c.cfg.BasicUser, c.cfg.BasicPass)
	}
	r.Header.Set("X-Request-ID", uuid.NewString())
	r.Header.Set("X-Timestamp", c.now().UTC().Format(time.RFC3339))
}

func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*Result, error) {
	maxAttempts := c.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := c.cfg.BaseDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	mult := c.cfg.Multiplier
	if mult < 1 {
		mult = 2
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, &Error{Kind: KindTransient, Message: "context cancelled during backoff", Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * mult)
		}

		req, err := build()
		if err != nil {
			return nil, &Error{Kind: KindPermanent, Message: "build request", Err: err}
		}

		res, retryable, err := c.doOnce(ctx, req)
		if err == nil {
			return res, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.WarnContext(ctx, "bank_call_retry",
			"attempt", attempt, "max_attempts", maxAttempts, "err", err)
	}

	ge := &Error{Kind: KindExhausted, Message: fmt.Sprintf("gave up after %d attempts", maxAttempts), Err: lastErr}
	if le, ok := AsError(lastErr); ok {
		ge.HTTPStatus = le.HTTPStatus
	}
	return nil, ge
}

// doOnce performs a single attempt. The bool reports whether the failure is
// retryable (transport error or 5xx).
func (c *Client) doOnce(ctx context.Context, req *http.Request) (*Result, bool, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, &Error{Kind: KindTransient, Message: "bank request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, &Error{Kind: KindTransient, HTTPStatus: resp.StatusCode, Message: "read response body", Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, true, &Error{Kind: KindTransient, HTTPStatus: resp.StatusCode, Message: trimBody(raw)}
	case resp.StatusCode == http.StatusNotFound:
		return &Result{NotFound: true, StatusCode: fmt.Sprint(resp.StatusCode)}, false, nil
	case resp.StatusCode >= 400:
		return nil, false, &Error{Kind: KindPermanent, HTTPStatus: resp.StatusCode, Message: trimBody(raw)}
	}

	var body bankPaymentResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false, &Error{Kind: KindPermanent, HTTPStatus: resp.StatusCode, Message: "decode response", Err: err}
	}
	return mapResponse(body), false, nil
}

func mapResponse(body bankPaymentResponse) *Result {
	out := &Result{
		Success:       body.Success,
		TransactionID: body.TransactionID,
		StatusCode:    body.StatusCode,
		Description:   body.StatusDescription,
		Currency:      body.Currency,
	}
	if out.Description == "" && body.ErrorMessage != "" {
		out.Description = body.ErrorMessage
	}
	if body.Amount != nil {
		out.Amount = *body.Amount
	}
	if body.Fees != nil {
		out.Fees = *body.Fees
	}

	switch strings.ToUpper(strings.TrimSpace(body.Status)) {
	case "SUCCESS", "COMPLETED":
		out.Status, out.Known = StatusSuccess, true
	case "PENDING", "IN_PROGRESS", "PROCESSING":
		out.Status, out.Known = StatusPending, true
	case "FAILED", "REJECTED", "DECLINED", "CANCELLED":
		out.Status, out.Known = StatusFailed, true
	case "NOT_FOUND":
		out.NotFound = true
	default:
		// unrecognized bank statuses pass through untouched
		out.Status = body.Status
	}
	return out
}

func trimBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 250 {
		s = s[:250]
	}
	return s
}
