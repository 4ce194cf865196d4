package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanRecord_CloneIsDeep(t *testing.T) {
	email := "a@example.com"
	loan := &LoanRecord{
		ID:             "loan-1",
		ApplicantEmail: &email,
		Documents:      json.RawMessage(`["pan"]`),
		Repayments: []PaymentRecord{
			{ID: "p1", Amount: decimal.NewFromInt(10), Type: PaymentTypeMonthly, Date: time.Now()},
		},
	}

	c := loan.Clone()
	*c.ApplicantEmail = "b@example.com"
	c.Repayments[0].Amount = decimal.NewFromInt(99)
	c.Documents[2] = 'X'

	assert.Equal(t, "a@example.com", loan.Email())
	assert.True(t, loan.Repayments[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.JSONEq(t, `["pan"]`, string(loan.Documents))
}

func TestLoanPatch_ApplyOnlySetFields(t *testing.T) {
	loan := &LoanRecord{ApplicantName: "Asha", Type: "Home Loan", Status: StatusPending}

	approved := StatusApproved
	patch := LoanPatch{Status: &approved}
	require.False(t, patch.IsEmpty())
	patch.Apply(loan)

	assert.Equal(t, StatusApproved, loan.Status)
	assert.Equal(t, "Asha", loan.ApplicantName)
	assert.Equal(t, "Home Loan", loan.Type)
}

func TestLoanPatch_ClearEmail(t *testing.T) {
	email := "a@example.com"
	loan := &LoanRecord{ApplicantEmail: &email}

	var none *string
	LoanPatch{ApplicantEmail: &none}.Apply(loan)

	assert.Nil(t, loan.ApplicantEmail)
	assert.Equal(t, "", loan.Email())
}

func TestDecimalMarshalsAsNumber(t *testing.T) {
	out, err := json.Marshal(PaymentRecord{Amount: decimal.NewFromInt(3334)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"amount":3334`)
}

func TestTransitionPolicies(t *testing.T) {
	assert.True(t, PermissiveTransitions(StatusClosed, StatusPending))

	assert.True(t, StrictTransitions(StatusPending, StatusApproved))
	assert.True(t, StrictTransitions(StatusApproved, StatusClosed))
	assert.True(t, StrictTransitions(StatusClosed, StatusClosed))
	assert.False(t, StrictTransitions(StatusClosed, StatusApproved))
	assert.False(t, StrictTransitions(StatusRejected, StatusApproved))
	assert.False(t, StrictTransitions(StatusWithdrawn, StatusPending))
	assert.True(t, StrictTransitions(Status("UnderReview"), StatusApproved))
}
