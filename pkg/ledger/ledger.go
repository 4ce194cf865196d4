package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loanTracker/pkg/logger"
	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/mcclellann/loanTracker/pkg/notify"
	"github.com/mcclellann/loanTracker/pkg/store"
	"go.uber.org/zap"
)

// ErrInvalidTransition is returned when the transition policy refuses a
// requested status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// Dispatcher hands notifications off for delivery. Implementations must not
// block the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notify.Event)
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, notify.Event) {}

// Ledger handles the business logic for loans and their repayments.
type Ledger struct {
	storage     store.Storage
	dispatcher  Dispatcher
	transitions models.TransitionPolicy
	now         func() time.Time
	newID       func() string
	locks       *keyedMutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDispatcher sets where status and receipt notifications go.
func WithDispatcher(d Dispatcher) Option {
	return func(l *Ledger) {
		if d != nil {
			l.dispatcher = d
		}
	}
}

// WithTransitionPolicy sets the policy consulted for requested status changes.
func WithTransitionPolicy(p models.TransitionPolicy) Option {
	return func(l *Ledger) {
		if p != nil {
			l.transitions = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage:     s,
		dispatcher:  nopDispatcher{},
		transitions: models.PermissiveTransitions,
		now:         time.Now,
		newID:       uuid.NewString,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateLoan derives the loan terms and stores a new loan with an empty ledger.
func (l *Ledger) CreateLoan(ctx context.Context, req CreateRequest) (*models.LoanRecord, error) {
	terms := DeriveLoanTerms(req)
	loan := NewLoanRecord(req, terms, l.newID(), l.now())

	if err := l.storage.Insert(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	logger.CtxInfo(ctx, "loan created",
		zap.String("id", loan.ID),
		zap.String("loan_id", loan.LoanID),
		zap.String("user_id", loan.UserID),
		zap.Stringer("amount", loan.Amount),
		zap.Int("repayment_months", loan.RepaymentMonths),
	)
	return loan, nil
}

// GetLoan returns one loan or store.ErrLoanNotFound.
func (l *Ledger) GetLoan(ctx context.Context, id string) (*models.LoanRecord, error) {
	loan, err := l.storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}
	return loan, nil
}

func (l *Ledger) GetAllLoans(ctx context.Context) ([]*models.LoanRecord, error) {
	loans, err := l.storage.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// GetLoansForUser returns the loans owned by userID, compared as strings.
func (l *Ledger) GetLoansForUser(ctx context.Context, userID string) ([]*models.LoanRecord, error) {
	loans, err := l.storage.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for user %s: %w", userID, err)
	}
	return loans, nil
}

// UpdateLoan applies a partial update and returns the stored result. When
// statusRequested is set and the loan has an applicant email, a status mail
// is dispatched after the write.
func (l *Ledger) UpdateLoan(ctx context.Context, id string, patch models.LoanPatch, statusRequested bool) (*models.LoanRecord, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	current, err := l.storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}

	if patch.Status != nil && !l.transitions(current.Status, *patch.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, *patch.Status)
	}

	if !patch.IsEmpty() {
		if err := l.storage.UpdateFields(ctx, id, patch); err != nil {
			return nil, fmt.Errorf("failed to update loan %s: %w", id, err)
		}
	}

	updated, err := l.storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload loan %s: %w", id, err)
	}

	logger.CtxInfo(ctx, "loan updated",
		zap.String("id", id),
		zap.String("previous_status", string(current.Status)),
		zap.String("status", string(updated.Status)),
	)

	if statusRequested && patch.Status != nil {
		if event, ok := notify.BuildNotification(current.Status, *updated, *patch.Status); ok {
			l.dispatcher.Dispatch(ctx, event)
		}
	}
	return updated, nil
}

// RecordPayment appends a payment to the loan's ledger, closing the loan once
// it is fully paid, and dispatches a receipt when an email is on file.
func (l *Ledger) RecordPayment(ctx context.Context, id string, req PaymentRequest) (*models.LoanRecord, error) {
	unlock := l.locks.lock(id)
	defer unlock()

	loan, err := l.storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}

	updated, payment := ApplyPayment(loan, req.Amount, req.Type, l.newID(), l.now())

	if err := l.storage.AppendPayment(ctx, id, payment, updated.TotalPaid, updated.Status); err != nil {
		return nil, fmt.Errorf("failed to record payment for loan %s: %w", id, err)
	}

	logger.CtxInfo(ctx, "payment recorded",
		zap.String("id", id),
		zap.String("payment_id", payment.ID),
		zap.String("type", string(payment.Type)),
		zap.Stringer("amount", payment.Amount),
		zap.Stringer("total_paid", updated.TotalPaid),
		zap.String("status", string(updated.Status)),
	)

	if event, ok := notify.BuildPaymentReceipt(*updated, payment.Amount); ok {
		l.dispatcher.Dispatch(ctx, event)
	}
	return updated, nil
}

// DeleteLoan removes a loan and its ledger. A missing id is not an error.
func (l *Ledger) DeleteLoan(ctx context.Context, id string) error {
	unlock := l.locks.lock(id)
	defer unlock()

	if err := l.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete loan %s: %w", id, err)
	}
	logger.CtxInfo(ctx, "loan deleted", zap.String("id", id))
	return nil
}

// keyedMutex serialises read-modify-write cycles per loan id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
