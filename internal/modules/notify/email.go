package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/mailer"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/vendors"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/shared/mask"
)

// EmailNotifier sends a remittance advice to the vendor when a payment
// reaches a final outcome. Vendors without an email on file are skipped,
// not failed.
type EmailNotifier struct {
	mailer   mailer.Service
	vendors  vendors.Lookup
	from     string
	fromName string
	logger   *slog.Logger
}

func NewEmailNotifier(m mailer.Service, v vendors.Lookup, from, fromName string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{mailer: m, vendors: v, from: from, fromName: fromName, logger: logger}
}

func (n *EmailNotifier) PaymentFinalized(ctx context.Context, p payments.Payment) error {
	vendor, err := n.vendors.ByCode(ctx, p.VendorCode)
	if err != nil {
		return fmt.Errorf("resolve vendor %s: %w", p.VendorCode, err)
	}
	if vendor.Email == "" {
		n.logger.Info("vendor has no email on file, skipping remittance advice",
			slog.String("vendor_code", p.VendorCode),
			slog.String("reference", p.Reference),
		)
		return nil
	}

	e := mailer.Email{
		FromName: n.fromName,
		From:     n.from,
		To:       []string{vendor.Email},
		Subject:  subjectFor(p),
		TextBody: bodyFor(p, vendor.Name),
	}
	if err := n.mailer.Send(ctx, e); err != nil {
		return fmt.Errorf("send remittance advice for %s: %w", p.Reference, err)
	}

	n.logger.Info("remittance advice sent",
		slog.String("reference", p.Reference),
		slog.String("status", p.Status),
		slog.String("to", mask.Email(vendor.Email)),
	)
	return nil
}

func subjectFor(p payments.Payment) string {
	switch p.Status {
	case payments.StatusCompleted:
		return fmt.Sprintf("Payment %s completed", p.Reference)
	case payments.StatusReversed:
		return fmt.Sprintf("Payment %s reversed", p.Reference)
	default:
		return fmt.Sprintf("Payment %s could not be processed", p.Reference)
	}
}

func bodyFor(p payments.Payment, vendorName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", vendorName)
	switch p.Status {
	case payments.StatusCompleted:
		fmt.Fprintf(&b, "Your payment has been completed.\n\n")
	case payments.StatusReversed:
		fmt.Fprintf(&b, "A previously completed payment has been reversed.\n\n")
	default:
		fmt.Fprintf(&b, "Your payment could not be processed (status: %s).\n\n", p.Status)
	}
	fmt.Fprintf(&b, "Reference:   %s\n", p.Reference)
	fmt.Fprintf(&b, "Amount:      %s %s\n", p.Currency, p.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Beneficiary: %s (%s)\n", p.BeneficiaryName, mask.Account(p.BeneficiaryAccount))
	if p.UTRNumber != nil && *p.UTRNumber != "" {
		fmt.Fprintf(&b, "UTR:         %s\n", *p.UTRNumber)
	}
	if p.InvoiceNumber != nil && *p.InvoiceNumber != "" {
		fmt.Fprintf(&b, "Invoice:     %s\n", *p.InvoiceNumber)
	}
	if p.Status != payments.StatusCompleted && p.ErrorMessage != nil && *p.ErrorMessage != "" {
		fmt.Fprintf(&b, "Detail:      %s\n", *p.ErrorMessage)
	}
	b.WriteString("\nThis is an automated notification.\n")
	return b.String()
}
