// Package notify turns loan state changes into outbound notification events
// and delivers them in the background.
//
// Building an event is pure: BuildNotification and BuildPaymentReceipt only
// read the loan snapshot they are given. Delivery goes through a Sender,
// usually behind a Dispatcher so callers never wait on it.
package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindApproved       Kind = "approved"
	KindRejected       Kind = "rejected"
	KindWithdrawn      Kind = "withdrawn"
	KindPaymentReceipt Kind = "payment_receipt"
)

// Event is a rendered notification ready for a Sender.
type Event struct {
	Kind    Kind
	LoanID  string
	To      string
	Subject string
	Body    string // HTML
}

// StatusPayload is the data rendered into status change mails.
type StatusPayload struct {
	ApplicantName      string
	LoanType           string
	LoanID             string
	Amount             decimal.Decimal
	TenureYears        int
	RepaymentMonths    int
	MonthlyInstallment decimal.Decimal
}

// ReceiptPayload is the data rendered into payment receipts.
type ReceiptPayload struct {
	ApplicantName string
	LoanType      string
	LoanID        string
	Paid          decimal.Decimal
	TotalPaid     decimal.Decimal
	Principal     decimal.Decimal
	Status        models.Status
}

// BuildNotification returns the mail for a requested status change, or false
// when the loan has no applicant email or the status has no template.
// Only Approved, Rejected and Withdrawn produce events.
func BuildNotification(previous models.Status, updated models.LoanRecord, requested models.Status) (Event, bool) {
	to := updated.Email()
	if to == "" {
		return Event{}, false
	}

	loanType := typeLabel(updated.Type)
	payload := StatusPayload{
		ApplicantName:      updated.ApplicantName,
		LoanType:           loanType,
		LoanID:             updated.LoanID,
		Amount:             updated.Amount,
		TenureYears:        updated.TenureYears,
		RepaymentMonths:    updated.RepaymentMonths,
		MonthlyInstallment: updated.MonthlyInstallment,
	}

	var kind Kind
	var subject string
	switch requested {
	case models.StatusApproved:
		kind = KindApproved
		subject = fmt.Sprintf("🎉 Your %s (ID: %s) is Approved", loanType, updated.LoanID)
	case models.StatusRejected:
		kind = KindRejected
		subject = fmt.Sprintf("❌ Update on your %s (ID: %s)", loanType, updated.LoanID)
	case models.StatusWithdrawn:
		kind = KindWithdrawn
		subject = fmt.Sprintf("ℹ️ Your %s (ID: %s) has been withdrawn", loanType, updated.LoanID)
	default:
		return Event{}, false
	}

	return Event{
		Kind:    kind,
		LoanID:  updated.LoanID,
		To:      to,
		Subject: subject,
		Body:    render(templates[kind], payload),
	}, true
}

// BuildPaymentReceipt returns the receipt for a payment just applied to
// updated, or false when the loan has no applicant email.
func BuildPaymentReceipt(updated models.LoanRecord, paid decimal.Decimal) (Event, bool) {
	to := updated.Email()
	if to == "" {
		return Event{}, false
	}

	payload := ReceiptPayload{
		ApplicantName: updated.ApplicantName,
		LoanType:      typeLabel(updated.Type),
		LoanID:        updated.LoanID,
		Paid:          paid,
		TotalPaid:     updated.TotalPaid,
		Principal:     updated.Amount,
		Status:        updated.Status,
	}

	return Event{
		Kind:    KindPaymentReceipt,
		LoanID:  updated.LoanID,
		To:      to,
		Subject: fmt.Sprintf("Payment received for Loan %s", updated.LoanID),
		Body:    render(templates[KindPaymentReceipt], payload),
	}, true
}

func typeLabel(t string) string {
	if t == "" {
		return "Loan"
	}
	return t
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// Templates are fixed at build time; keep a readable body regardless.
		return template.HTMLEscapeString(fmt.Sprintf("%+v", data))
	}
	return buf.String()
}
