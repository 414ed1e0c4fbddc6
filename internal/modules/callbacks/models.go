package callbacks

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ChannelWebhook = "webhook"
	ChannelH2H     = "h2h"
)

// Event is the received-callback ledger. The unique (channel, event_id) index
// is what makes redelivery idempotent: the second insert is a no-op.
type Event struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Channel     string         `gorm:"type:varchar(16);not null;uniqueIndex:ux_callback_events_channel_event,priority:1"`
	EventID     string         `gorm:"type:varchar(160);not null;uniqueIndex:ux_callback_events_channel_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64)"`
	PayloadJSON datatypes.JSON `gorm:"type:json"`

	ReceivedAt   time.Time  `gorm:"type:datetime(3);not null"`
	ProcessedAt  *time.Time `gorm:"type:datetime(3)"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (Event) TableName() string { return "callback_events" }

// WebhookPayload is the bank-pushed status body.
type WebhookPayload struct {
	EventType     string            `json:"event_type"`
	PaymentID     string            `json:"payment_id"`
	TransactionID string            `json:"transaction_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	UTRNumber     string            `json:"utr_number"`
	Metadata      map[string]string `json:"metadata"`
}
