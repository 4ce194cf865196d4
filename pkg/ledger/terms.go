package ledger

import (
	"strconv"
	"time"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
)

// Terms are the financial fields fixed when a loan is created.
type Terms struct {
	Amount             decimal.Decimal
	TenureYears        int
	PaymentOption      models.PaymentOption
	RepaymentMonths    int
	MonthlyInstallment decimal.Decimal
}

// DeriveLoanTerms resolves tenure, schedule length and installment size.
// It never fails: unusable input falls back to defaults.
func DeriveLoanTerms(req CreateRequest) Terms {
	t := Terms{
		TenureYears:   ParseTenureYears(req.TenureYears, req.Tenure),
		PaymentOption: models.PaymentOption(req.PaymentOption),
	}
	if t.PaymentOption == "" {
		t.PaymentOption = models.PaymentOptionEMI
	}

	switch months, ok := CoerceInt(req.RepaymentMonths); {
	case t.PaymentOption == models.PaymentOptionFull:
		t.RepaymentMonths = 1
	case ok:
		t.RepaymentMonths = months
	default:
		t.RepaymentMonths = t.TenureYears * 12
	}

	if amount, ok := CoerceNumber(req.Amount); ok && amount.IsPositive() {
		t.Amount = amount
	} else {
		t.Amount = decimal.Zero
	}

	t.MonthlyInstallment = Installment(t.Amount, t.RepaymentMonths)
	return t
}

// Installment is ceil(amount / months), or the whole amount when months is not positive.
func Installment(amount decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return amount
	}
	q, r := amount.QuoRem(decimal.NewFromInt(int64(months)), 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q
}

// NewLoanRecord assembles a fresh loan with an empty ledger.
func NewLoanRecord(req CreateRequest, terms Terms, id string, now time.Time) *models.LoanRecord {
	loanID := req.LoanID
	if loanID == "" {
		loanID = strconv.FormatInt(now.UnixMilli(), 10)
	}
	status := req.Status
	if status == "" {
		status = models.StatusPending
	}

	return &models.LoanRecord{
		ID:                 id,
		LoanID:             loanID,
		UserID:             req.UserID,
		ApplicantName:      req.ApplicantName,
		ApplicantEmail:     req.ApplicantEmail,
		Type:               req.Type,
		Amount:             terms.Amount,
		TenureYears:        terms.TenureYears,
		PaymentOption:      terms.PaymentOption,
		RepaymentMonths:    terms.RepaymentMonths,
		MonthlyInstallment: terms.MonthlyInstallment,
		TotalPaid:          decimal.Zero,
		Repayments:         []models.PaymentRecord{},
		Purpose:            req.Purpose,
		Documents:          req.Documents,
		Status:             status,
		CreatedAt:          now.UTC(),
	}
}
