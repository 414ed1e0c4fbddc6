package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessRequest is the inbound payment obligation before any I/O.
type ProcessRequest struct {
	VendorCode         string
	Amount             decimal.Decimal
	Currency           string
	DebitAccount       string
	BeneficiaryName    string
	BeneficiaryAccount string
	BankCode           string
	InvoiceNumber      string
	DueDate            *time.Time
	Description        string
}

type ValidationError struct {
	Field   string
	Message string
}

func (r ProcessRequest) isZero() bool {
	return r.VendorCode == "" && r.Amount.IsZero() &&
		r.BeneficiaryAccount == "" && r.BankCode == "" && r.DebitAccount == ""
}

// Validate collects every applicable business-rule failure; it never stops at
// the first one. An empty list means the request may be submitted. Failures
// here are data for the caller, not errors.
func Validate(req ProcessRequest) []ValidationError {
	if req.isZero() {
		return []ValidationError{{Field: "request", Message: "payment request is empty"}}
	}

	var errs []ValidationError
	if req.VendorCode == "" {
		errs = append(errs, ValidationError{Field: "vendor_code", Message: "vendor identifier is required"})
	}
	if req.Amount.IsZero() {
		errs = append(errs, ValidationError{Field: "amount", Message: "amount is required"})
	} else if !req.Amount.IsPositive() {
		errs = append(errs, ValidationError{Field: "amount", Message: "amount must be greater than zero"})
	}
	if req.BeneficiaryAccount == "" {
		errs = append(errs, ValidationError{Field: "beneficiary_account", Message: "beneficiary account is required"})
	}
	if req.BankCode == "" {
		errs = append(errs, ValidationError{Field: "bank_code", Message: "bank routing code is required"})
	}
	return errs
}

// FieldMap renders validation errors as field->message for the API error body.
func FieldMap(errs []ValidationError) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Message
	}
	return out
}
