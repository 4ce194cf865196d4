package store

import (
	"context"
	"errors"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrLoanNotFound is returned when no loan exists for the given id.
var ErrLoanNotFound = errors.New("loan not found")

// Storage defines the record store for loans and their repayment ledgers.
// Implementations return copies; callers own what they receive.
type Storage interface {
	Get(ctx context.Context, id string) (*models.LoanRecord, error)
	GetAll(ctx context.Context) ([]*models.LoanRecord, error)
	// FindByUser matches on the string form of the owning user id.
	FindByUser(ctx context.Context, userID string) ([]*models.LoanRecord, error)
	Insert(ctx context.Context, loan *models.LoanRecord) error
	UpdateFields(ctx context.Context, id string, patch models.LoanPatch) error
	// AppendPayment adds one ledger entry and stores the new running total and status.
	AppendPayment(ctx context.Context, id string, payment models.PaymentRecord, totalPaid decimal.Decimal, status models.Status) error
	// Delete removes a loan and its ledger. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}
