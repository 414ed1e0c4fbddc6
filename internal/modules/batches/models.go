package batches

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending              = "PENDING"
	StatusProcessing           = "PROCESSING"
	StatusCompleted            = "COMPLETED"
	StatusFailed               = "FAILED"
	StatusReconciled           = "RECONCILED"
	StatusReconciliationFailed = "RECONCILIATION_FAILED"
	StatusApproved             = "APPROVED"
	StatusRejected             = "REJECTED"
)

type Batch struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	Reference string `gorm:"type:varchar(40);not null;uniqueIndex:ux_batches_reference"`

	// TotalAmount equals the sum of member payment amounts at completion.
	TotalAmount  decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	PaymentCount int             `gorm:"not null"`
	SuccessCount int             `gorm:"not null;default:0"`
	FailureCount int             `gorm:"not null;default:0"`

	Status string `gorm:"type:varchar(32);not null"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Batch) TableName() string { return "payment_batches" }
