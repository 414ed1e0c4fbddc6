package callbacks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/apperr"
)

// StatusSink is the orchestrator's callback entry point.
type StatusSink interface {
	HandleBankStatus(ctx context.Context, transactionID, paymentRef, status, message, utr string) error
}

type Service struct {
	events   EventStore
	sink     StatusSink
	secret   []byte // webhook HMAC secret
	h2hToken string // shared token for the host-to-host channel
	logger   *slog.Logger
}

func NewService(events EventStore, sink StatusSink, webhookSecret, h2hToken string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		events:   events,
		sink:     sink,
		secret:   []byte(webhookSecret),
		h2hToken: h2hToken,
		logger:   logger,
	}
}

// Signature computes the base64 HMAC-SHA256 the bank sends in X-Bank-Signature.
func Signature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature rejects a missing header and any mismatch against the
// recomputed HMAC over the raw body.
func VerifySignature(secret, body []byte, header string) bool {
	if header == "" || len(secret) == 0 {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}

// HandleWebhook verifies, dedupes and forwards one bank-pushed status event.
// Unverified payloads never reach the orchestrator.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, sigHeader string) error {
	if !VerifySignature(s.secret, body, sigHeader) {
		s.logger.WarnContext(ctx, "webhook_signature_rejected", "has_header", sigHeader != "")
		return apperr.UnauthorizedErr("invalid webhook signature")
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return apperr.InvalidErr("malformed webhook payload", nil)
	}
	if payload.TransactionID == "" && payload.PaymentID == "" {
		return apperr.InvalidErr("webhook payload has no payment identifier", nil)
	}

	// Dedupe key is the logical status delivery, so redelivery of the same
	// (payment, status) acknowledges without reapplying. Keyed on whichever
	// identifier the bank sent; payment_id-only deliveries must not collide.
	identity := payload.TransactionID
	if identity == "" {
		identity = payload.PaymentID
	}
	eventID := identity + ":" + strings.ToUpper(payload.Status)
	ev := &Event{
		ID:          uuid.NewString(),
		Channel:     ChannelWebhook,
		EventID:     eventID,
		EventType:   payload.EventType,
		PayloadJSON: datatypes.JSON(body),
		ReceivedAt:  time.Now(),
	}
	dup, err := s.events.Insert(ctx, ev)
	if err != nil {
		return apperr.Wrap(err)
	}
	if dup {
		s.logger.InfoContext(ctx, "webhook_deduplicated", "event_id", eventID)
		return nil
	}

	message := payload.Metadata["message"]
	if err := s.sink.HandleBankStatus(ctx, payload.TransactionID, payload.PaymentID, payload.Status, message, payload.UTRNumber); err != nil {
		_ = s.events.MarkProcessed(ctx, ev.ID, err)
		// propagate so the bank retries the delivery
		return err
	}
	if err := s.events.MarkProcessed(ctx, ev.ID, nil); err != nil {
		return apperr.Wrap(err)
	}
	s.logger.InfoContext(ctx, "webhook_processed", "event_id", eventID, "status", payload.Status)
	return nil
}

// HandleH2H applies a host-to-host status confirmation. The original channel
// carried no authentication; a shared token check was added deliberately.
func (s *Service) HandleH2H(ctx context.Context, token, transactionID, status, message string) error {
	if s.h2hToken != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.h2hToken)) != 1 {
			s.logger.WarnContext(ctx, "h2h_token_rejected", "has_token", token != "")
			return apperr.UnauthorizedErr("invalid callback token")
		}
	}
	if transactionID == "" {
		return apperr.InvalidErr("transaction id is required", map[string]string{"X-Transaction-ID": "required"})
	}
	if status == "" {
		return apperr.InvalidErr("status is required", map[string]string{"status": "required"})
	}

	eventID := transactionID + ":" + strings.ToUpper(status)
	ev := &Event{
		ID:         uuid.NewString(),
		Channel:    ChannelH2H,
		EventID:    eventID,
		EventType:  "payment.status",
		ReceivedAt: time.Now(),
	}
	dup, err := s.events.Insert(ctx, ev)
	if err != nil {
		return apperr.Wrap(err)
	}
	if dup {
		s.logger.InfoContext(ctx, "h2h_deduplicated", "event_id", eventID)
		return nil
	}

	if err := s.sink.HandleBankStatus(ctx, transactionID, "", status, message, ""); err != nil {
		_ = s.events.MarkProcessed(ctx, ev.ID, err)
		return err
	}
	if err := s.events.MarkProcessed(ctx, ev.ID, nil); err != nil {
		return apperr.Wrap(err)
	}
	return nil
}
