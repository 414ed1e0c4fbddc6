package payments

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
	StatusDeclined   = "DECLINED"
	StatusReversed   = "REVERSED"
)

// IsTerminal reports whether no further automatic transition may occur.
// REVERSED is reachable from COMPLETED via an explicit reversal only.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusDeclined, StatusReversed:
		return true
	}
	return false
}

// NormalizeBankStatus maps a bank-reported status string onto the internal
// status model, case-insensitive. Unrecognized values are returned verbatim
// (upper-cased) with ok=false.
func NormalizeBankStatus(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "COMPLETED":
		return StatusCompleted, true
	case "PENDING", "IN_PROGRESS", "PROCESSING":
		return StatusProcessing, true
	case "FAILED", "REJECTED":
		return StatusFailed, true
	case "DECLINED":
		return StatusDeclined, true
	case "CANCELLED":
		return StatusCancelled, true
	case "REVERSED":
		return StatusReversed, true
	}
	return strings.ToUpper(strings.TrimSpace(s)), false
}

type Payment struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	Reference string `gorm:"type:varchar(40);not null;uniqueIndex:ux_payments_reference"`

	VendorCode string  `gorm:"type:varchar(64);not null;index:ix_payments_vendor_code"`
	BatchID    *string `gorm:"type:char(36);index:ix_payments_batch_id"`

	DebitAccount       string `gorm:"type:varchar(34);not null"`
	BeneficiaryName    string `gorm:"type:varchar(128)"`
	BeneficiaryAccount string `gorm:"type:varchar(34);not null"`
	BankCode           string `gorm:"type:varchar(16);not null"`

	Amount   decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Currency string          `gorm:"type:char(3);not null"`

	InvoiceNumber *string    `gorm:"type:varchar(64)"`
	DueDate       *time.Time `gorm:"type:date"`
	Description   *string    `gorm:"type:varchar(255)"`

	// PaymentDate is the value date submitted to the bank; reconciliation
	// enumerates by this column.
	PaymentDate time.Time `gorm:"type:date;not null;index:ix_payments_payment_date"`

	Status string `gorm:"type:varchar(32);not null"`

	TransactionID *string `gorm:"type:varchar(64);index:ix_payments_transaction_id"`
	BankReference *string `gorm:"type:varchar(64)"`
	UTRNumber     *string `gorm:"type:varchar(64)"`

	// Remarks is an append-only history, newline-separated.
	Remarks      *string `gorm:"type:text"`
	ErrorMessage *string `gorm:"type:varchar(255)"`

	Reconciled        bool    `gorm:"not null;default:false"`
	ReconciliationRef *string `gorm:"type:varchar(64)"`

	ApprovalStatus *string `gorm:"type:varchar(16)"` // APPROVED | REJECTED
	Exported       bool    `gorm:"not null;default:false"`
	Voided         bool    `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Payment) TableName() string { return "payments" }

// Reversal is the explicit audit record required to move a COMPLETED payment
// to REVERSED. Payments are never deleted; the reversal sits next to them.
type Reversal struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	PaymentID string `gorm:"type:char(36);not null;index:ix_reversals_payment_id"`
	Reference string `gorm:"type:varchar(40);not null"`

	Amount   decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Currency string          `gorm:"type:char(3);not null"`

	Reason *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Reversal) TableName() string { return "payment_reversals" }
