package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusWithdrawn Status = "Withdrawn"
	StatusClosed    Status = "Closed"
)

type PaymentOption string

const (
	PaymentOptionEMI  PaymentOption = "emi"
	PaymentOptionFull PaymentOption = "full"
)

type PaymentType string

const (
	PaymentTypeMonthly PaymentType = "monthly"
	PaymentTypeFull    PaymentType = "full"
	PaymentTypeCustom  PaymentType = "custom"
)

// LoanRecord is a loan application together with its repayment ledger.
type LoanRecord struct {
	ID                 string          `json:"id"`
	LoanID             string          `json:"loanId"`
	UserID             string          `json:"userId"`
	ApplicantName      string          `json:"applicantName"`
	ApplicantEmail     *string         `json:"applicantEmail"`
	Type               string          `json:"type"`
	Amount             decimal.Decimal `json:"amount"` // principal
	TenureYears        int             `json:"tenureYears"`
	PaymentOption      PaymentOption   `json:"paymentOption"`
	RepaymentMonths    int             `json:"repaymentMonths"`
	MonthlyInstallment decimal.Decimal `json:"monthlyInstallment"`
	TotalPaid          decimal.Decimal `json:"totalPaid"`
	Repayments         []PaymentRecord `json:"repayments"`
	Purpose            string          `json:"purpose"`
	Documents          json.RawMessage `json:"documents"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// PaymentRecord is a single append-only ledger entry.
type PaymentRecord struct {
	ID     string          `json:"id"`
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Type   PaymentType     `json:"type"`
}

// Email returns the applicant email, or "" when none is on file.
func (l *LoanRecord) Email() string {
	if l.ApplicantEmail == nil {
		return ""
	}
	return *l.ApplicantEmail
}

// Outstanding is the principal left to repay. Negative when overpaid.
func (l *LoanRecord) Outstanding() decimal.Decimal {
	return l.Amount.Sub(l.TotalPaid)
}

// Clone returns a deep copy so stores never hand out shared slices.
func (l *LoanRecord) Clone() *LoanRecord {
	c := *l
	if l.ApplicantEmail != nil {
		email := *l.ApplicantEmail
		c.ApplicantEmail = &email
	}
	c.Repayments = make([]PaymentRecord, len(l.Repayments))
	copy(c.Repayments, l.Repayments)
	if l.Documents != nil {
		c.Documents = append(json.RawMessage(nil), l.Documents...)
	}
	return &c
}

// LoanPatch carries the fields a partial update may touch. Nil means unchanged.
// Principal, installment schedule and the ledger itself are not patchable.
type LoanPatch struct {
	UserID         *string
	ApplicantName  *string
	ApplicantEmail **string
	Type           *string
	TenureYears    *int
	PaymentOption  *PaymentOption
	Purpose        *string
	Documents      json.RawMessage
	Status         *Status
}

// IsEmpty reports whether the patch changes nothing.
func (p LoanPatch) IsEmpty() bool {
	return p.UserID == nil && p.ApplicantName == nil && p.ApplicantEmail == nil &&
		p.Type == nil && p.TenureYears == nil && p.PaymentOption == nil &&
		p.Purpose == nil && p.Documents == nil && p.Status == nil
}

// Apply copies every set field onto loan.
func (p LoanPatch) Apply(loan *LoanRecord) {
	if p.UserID != nil {
		loan.UserID = *p.UserID
	}
	if p.ApplicantName != nil {
		loan.ApplicantName = *p.ApplicantName
	}
	if p.ApplicantEmail != nil {
		loan.ApplicantEmail = *p.ApplicantEmail
	}
	if p.Type != nil {
		loan.Type = *p.Type
	}
	if p.TenureYears != nil {
		loan.TenureYears = *p.TenureYears
	}
	if p.PaymentOption != nil {
		loan.PaymentOption = *p.PaymentOption
	}
	if p.Purpose != nil {
		loan.Purpose = *p.Purpose
	}
	if p.Documents != nil {
		loan.Documents = append(json.RawMessage(nil), p.Documents...)
	}
	if p.Status != nil {
		loan.Status = *p.Status
	}
}
