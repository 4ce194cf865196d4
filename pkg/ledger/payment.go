package ledger

import (
	"time"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
)

// ApplyPayment appends one payment to a copy of loan and returns both.
//
// An explicit amount is taken as-is, zero and negative included. Without one,
// a "full" payment settles the outstanding principal (negative once
// overpaid) and anything else pays one installment. The loan is closed as
// soon as the total paid reaches the principal.
func ApplyPayment(loan *models.LoanRecord, amount *decimal.Decimal, paymentType models.PaymentType, id string, at time.Time) (*models.LoanRecord, models.PaymentRecord) {
	if paymentType == "" {
		paymentType = models.PaymentTypeMonthly
	}

	var paid decimal.Decimal
	switch {
	case amount != nil:
		paid = *amount
	case paymentType == models.PaymentTypeFull:
		paid = loan.Outstanding()
	default:
		paid = loan.MonthlyInstallment
	}

	payment := models.PaymentRecord{
		ID:     id,
		Date:   at.UTC(),
		Amount: paid,
		Type:   paymentType,
	}

	updated := loan.Clone()
	updated.Repayments = append(updated.Repayments, payment)
	updated.TotalPaid = updated.TotalPaid.Add(paid)
	if updated.TotalPaid.GreaterThanOrEqual(updated.Amount) {
		updated.Status = models.StatusClosed
	}
	return updated, payment
}
