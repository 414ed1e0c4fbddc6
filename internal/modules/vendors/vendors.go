package vendors

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("vendor not found")

type Vendor struct {
	ID   string `gorm:"type:char(36);primaryKey"`
	Code string `gorm:"type:varchar(64);not null;uniqueIndex:ux_vendors_code"`
	Name string `gorm:"type:varchar(128);not null"`

	Email         string `gorm:"type:varchar(128)"`
	AccountNumber string `gorm:"type:varchar(34)"`
	BankCode      string `gorm:"type:varchar(16)"` // IFSC / routing code

	Active bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Vendor) TableName() string { return "vendors" }

// Lookup is the collaborator port the payment core reads vendors through.
// Vendor CRUD itself lives outside this service.
type Lookup interface {
	ByCode(ctx context.Context, code string) (*Vendor, error)
}

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) ByCode(ctx context.Context, code string) (*Vendor, error) {
	var v Vendor
	err := r.db.WithContext(ctx).First(&v, "code = ? AND active = 1", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Static is a fixed in-memory lookup for tests and tooling.
type Static map[string]*Vendor

func (m Static) ByCode(_ context.Context, code string) (*Vendor, error) {
	if v, ok := m[code]; ok {
		return v, nil
	}
	return nil, ErrNotFound
}
