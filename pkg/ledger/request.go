package ledger

import (
	"encoding/json"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
)

// CreateRequest is a loan application after boundary normalisation.
// Tenure and schedule stay unresolved here; DeriveLoanTerms settles them.
type CreateRequest struct {
	LoanID          string // empty assigns one from the creation time
	UserID          string
	ApplicantName   string
	ApplicantEmail  *string
	Type            string
	Amount          any
	TenureYears     any    // explicit years
	Tenure          any    // legacy free text such as "5 years"
	PaymentOption   string // empty means emi
	RepaymentMonths any    // explicit schedule length override
	Purpose         string
	Documents       json.RawMessage
	Status          models.Status
}

// PaymentRequest asks for one payment. A nil Amount lets the type decide it.
type PaymentRequest struct {
	Amount *decimal.Decimal
	Type   models.PaymentType
}

// ParseCreateRequest normalises a decoded JSON body for loan creation.
func ParseCreateRequest(raw map[string]any) CreateRequest {
	req := CreateRequest{
		LoanID:          CoerceString(raw["loanId"]),
		UserID:          CoerceString(raw["userId"]),
		ApplicantName:   CoerceString(raw["applicantName"]),
		Type:            firstNonEmpty(CoerceString(raw["type"]), CoerceString(raw["loanType"]), "Loan"),
		Amount:          raw["amount"],
		TenureYears:     raw["tenureYears"],
		Tenure:          raw["tenure"],
		PaymentOption:   CoerceString(raw["paymentOption"]),
		RepaymentMonths: raw["repaymentMonths"],
		Purpose:         CoerceString(raw["purpose"]),
		Documents:       documents(raw["documents"]),
		Status:          models.Status(firstNonEmpty(CoerceString(raw["status"]), string(models.StatusPending))),
	}
	if email := firstNonEmpty(CoerceString(raw["applicantEmail"]), CoerceString(raw["email"])); email != "" {
		req.ApplicantEmail = &email
	}
	return req
}

// ParsePatch normalises a partial update body. Keys outside the patchable set
// are ignored. statusRequested is true when the body names a non-empty status.
func ParsePatch(raw map[string]any) (patch models.LoanPatch, statusRequested bool) {
	if v, ok := raw["userId"]; ok {
		userID := CoerceString(v)
		patch.UserID = &userID
	}
	if v, ok := raw["applicantName"]; ok {
		name := CoerceString(v)
		patch.ApplicantName = &name
	}
	if v, ok := raw["applicantEmail"]; ok {
		var email *string
		if s := CoerceString(v); s != "" {
			email = &s
		}
		patch.ApplicantEmail = &email
	}
	if v, ok := raw["type"]; ok {
		loanType := CoerceString(v)
		patch.Type = &loanType
	}
	if v, ok := raw["tenureYears"]; ok {
		if years, ok := CoerceInt(v); ok {
			patch.TenureYears = &years
		}
	}
	if v, ok := raw["paymentOption"]; ok {
		option := models.PaymentOption(CoerceString(v))
		patch.PaymentOption = &option
	}
	if v, ok := raw["purpose"]; ok {
		purpose := CoerceString(v)
		patch.Purpose = &purpose
	}
	if v, ok := raw["documents"]; ok {
		patch.Documents = documents(v)
	}
	if s := CoerceString(raw["status"]); s != "" {
		status := models.Status(s)
		patch.Status = &status
		statusRequested = true
	}
	return patch, statusRequested
}

// ParsePaymentRequest normalises a pay body. A non-numeric amount counts as absent.
func ParsePaymentRequest(raw map[string]any) PaymentRequest {
	req := PaymentRequest{Type: models.PaymentType(CoerceString(raw["type"]))}
	if amount, ok := CoerceNumber(raw["amount"]); ok {
		req.Amount = &amount
	}
	return req
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// documents keeps whatever the client sent, defaulting empty values to [].
func documents(v any) json.RawMessage {
	switch d := v.(type) {
	case nil:
		return json.RawMessage(`[]`)
	case string:
		if d == "" {
			return json.RawMessage(`[]`)
		}
	case bool:
		if !d {
			return json.RawMessage(`[]`)
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`[]`)
	}
	return raw
}
