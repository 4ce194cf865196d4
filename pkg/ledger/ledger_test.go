package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/mcclellann/loanTracker/pkg/notify"
	"github.com/mcclellann/loanTracker/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingDispatcher) Dispatch(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingDispatcher) sent() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// failingStore wraps a working store and fails the writes it is told to.
type failingStore struct {
	store.Storage
	err error
}

func (f *failingStore) Insert(context.Context, *models.LoanRecord) error { return f.err }
func (f *failingStore) AppendPayment(context.Context, string, models.PaymentRecord, decimal.Decimal, models.Status) error {
	return f.err
}

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	var n int
	var mu sync.Mutex
	base := []Option{
		WithDispatcher(d),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return "id-" + strconv.Itoa(n)
		}),
	}
	return NewLedger(store.NewMemoryStore(), append(base, opts...)...), d
}

func createLoan(t *testing.T, l *Ledger, body map[string]any) *models.LoanRecord {
	t.Helper()
	loan, err := l.CreateLoan(context.Background(), ParseCreateRequest(body))
	require.NoError(t, err)
	return loan
}

func TestCreateLoan_EMI(t *testing.T) {
	l, _ := newTestLedger(t)

	loan := createLoan(t, l, map[string]any{"amount": json.Number("120000"), "tenureYears": json.Number("1")})

	assert.Equal(t, 12, loan.RepaymentMonths)
	assert.True(t, dec("10000").Equal(loan.MonthlyInstallment))
	assert.Equal(t, models.StatusPending, loan.Status)
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), loan.LoanID)
}

func TestCreateLoan_FullPayment(t *testing.T) {
	l, _ := newTestLedger(t)

	loan := createLoan(t, l, map[string]any{"amount": json.Number("100000"), "paymentOption": "full"})

	assert.Equal(t, 1, loan.RepaymentMonths)
	assert.True(t, dec("100000").Equal(loan.MonthlyInstallment))
}

func TestCreateLoan_RoundTrip(t *testing.T) {
	l, _ := newTestLedger(t)
	created := createLoan(t, l, map[string]any{
		"userId":         json.Number("7"),
		"applicantName":  "Ada",
		"applicantEmail": "ada@example.com",
		"type":           "Home Loan",
		"amount":         "250000.75",
		"tenure":         "20 years",
		"purpose":        "House",
		"documents":      []any{"id.pdf"},
	})

	got, err := l.GetLoan(context.Background(), created.ID)

	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateLoan_StoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	l := NewLedger(&failingStore{Storage: store.NewMemoryStore(), err: boom})

	_, err := l.CreateLoan(context.Background(), ParseCreateRequest(map[string]any{}))

	assert.ErrorIs(t, err, boom)
}

func TestGetLoan_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.GetLoan(context.Background(), "missing")

	assert.ErrorIs(t, err, store.ErrLoanNotFound)
}

func TestGetLoansForUser(t *testing.T) {
	l, _ := newTestLedger(t)
	createLoan(t, l, map[string]any{"userId": json.Number("5")})
	createLoan(t, l, map[string]any{"userId": "5"})
	createLoan(t, l, map[string]any{"userId": "6"})

	loans, err := l.GetLoansForUser(context.Background(), "5")
	require.NoError(t, err)
	assert.Len(t, loans, 2)

	all, err := l.GetAllLoans(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateLoan_ApprovedNotifies(t *testing.T) {
	l, d := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"applicantEmail": "ada@example.com", "type": "Car Loan", "amount": json.Number("5000")})

	patch, statusRequested := ParsePatch(map[string]any{"status": "Approved"})
	updated, err := l.UpdateLoan(context.Background(), loan.ID, patch, statusRequested)

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	events := d.sent()
	require.Len(t, events, 1)
	assert.Equal(t, notify.KindApproved, events[0].Kind)
	assert.Equal(t, "ada@example.com", events[0].To)
	assert.Contains(t, events[0].Subject, "Car Loan")
	assert.Contains(t, events[0].Subject, loan.LoanID)
}

func TestUpdateLoan_NoEmailNoNotification(t *testing.T) {
	l, d := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"amount": json.Number("5000")})

	patch, statusRequested := ParsePatch(map[string]any{"status": "Approved"})
	_, err := l.UpdateLoan(context.Background(), loan.ID, patch, statusRequested)

	require.NoError(t, err)
	assert.Empty(t, d.sent())
}

func TestUpdateLoan_NonStatusPatchIsSilent(t *testing.T) {
	l, d := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"applicantEmail": "ada@example.com"})

	patch, statusRequested := ParsePatch(map[string]any{"purpose": "Wedding", "totalPaid": json.Number("100")})
	updated, err := l.UpdateLoan(context.Background(), loan.ID, patch, statusRequested)

	require.NoError(t, err)
	assert.Equal(t, "Wedding", updated.Purpose)
	assert.True(t, updated.TotalPaid.IsZero())
	assert.Empty(t, d.sent())
}

func TestUpdateLoan_EmptyPatchReturnsLoan(t *testing.T) {
	l, _ := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"purpose": "Bike"})

	updated, err := l.UpdateLoan(context.Background(), loan.ID, models.LoanPatch{}, false)

	require.NoError(t, err)
	assert.Equal(t, loan, updated)
}

func TestUpdateLoan_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	patch, statusRequested := ParsePatch(map[string]any{"status": "Approved"})
	_, err := l.UpdateLoan(context.Background(), "missing", patch, statusRequested)

	assert.ErrorIs(t, err, store.ErrLoanNotFound)
}

func TestUpdateLoan_PermissiveReopensClosed(t *testing.T) {
	l, _ := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"status": "Closed"})

	patch, statusRequested := ParsePatch(map[string]any{"status": "Pending"})
	updated, err := l.UpdateLoan(context.Background(), loan.ID, patch, statusRequested)

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
}

func TestUpdateLoan_StrictRefusesLeavingTerminal(t *testing.T) {
	l, d := newTestLedger(t, WithTransitionPolicy(models.StrictTransitions))
	loan := createLoan(t, l, map[string]any{"status": "Rejected", "applicantEmail": "ada@example.com"})

	patch, statusRequested := ParsePatch(map[string]any{"status": "Approved"})
	_, err := l.UpdateLoan(context.Background(), loan.ID, patch, statusRequested)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, d.sent())
	got, err := l.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestRecordPayment_ClosesAfterInstallments(t *testing.T) {
	l, _ := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"amount": json.Number("10000"), "repaymentMonths": json.Number("3")})
	require.True(t, dec("3334").Equal(loan.MonthlyInstallment))

	var err error
	for i := 0; i < 3; i++ {
		loan, err = l.RecordPayment(context.Background(), loan.ID, PaymentRequest{Type: models.PaymentTypeMonthly})
		require.NoError(t, err)
	}

	assert.True(t, dec("10002").Equal(loan.TotalPaid))
	assert.Equal(t, models.StatusClosed, loan.Status)

	stored, err := l.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan, stored)
}

func TestRecordPayment_ReceiptCarriesClosedStatus(t *testing.T) {
	l, d := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"amount": json.Number("900"), "applicantEmail": "ada@example.com"})

	_, err := l.RecordPayment(context.Background(), loan.ID, PaymentRequest{Type: models.PaymentTypeFull})
	require.NoError(t, err)

	events := d.sent()
	require.Len(t, events, 1)
	assert.Equal(t, notify.KindPaymentReceipt, events[0].Kind)
	assert.Equal(t, "Payment received for Loan "+loan.LoanID, events[0].Subject)
	assert.Contains(t, events[0].Body, "Closed")
}

func TestRecordPayment_NoEmailNoReceipt(t *testing.T) {
	l, d := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"amount": json.Number("900")})

	_, err := l.RecordPayment(context.Background(), loan.ID, PaymentRequest{})

	require.NoError(t, err)
	assert.Empty(t, d.sent())
}

func TestRecordPayment_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.RecordPayment(context.Background(), "missing", PaymentRequest{})

	assert.ErrorIs(t, err, store.ErrLoanNotFound)
}

func TestRecordPayment_StoreFailureLeavesNoReceipt(t *testing.T) {
	boom := errors.New("write failed")
	mem := store.NewMemoryStore()
	d := &recordingDispatcher{}
	l := NewLedger(&failingStore{Storage: mem, err: boom}, WithDispatcher(d))
	email := "ada@example.com"
	require.NoError(t, mem.Insert(context.Background(), &models.LoanRecord{
		ID: "x", LoanID: "1", ApplicantEmail: &email, Amount: dec("10"), Repayments: []models.PaymentRecord{},
	}))

	_, err := l.RecordPayment(context.Background(), "x", PaymentRequest{})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, d.sent())
}

func TestRecordPayment_ConcurrentPaymentsAllRecorded(t *testing.T) {
	l, _ := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{"amount": json.Number("1000000"), "tenureYears": json.Number("10")})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.RecordPayment(context.Background(), loan.ID, PaymentRequest{Amount: ptr(dec("10"))})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := l.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Len(t, got.Repayments, n)
	assert.True(t, dec("200").Equal(got.TotalPaid))
	assert.Empty(t, l.locks.locks)
}

func TestDeleteLoan(t *testing.T) {
	l, _ := newTestLedger(t)
	loan := createLoan(t, l, map[string]any{})

	require.NoError(t, l.DeleteLoan(context.Background(), loan.ID))
	require.NoError(t, l.DeleteLoan(context.Background(), loan.ID))

	_, err := l.GetLoan(context.Background(), loan.ID)
	assert.ErrorIs(t, err, store.ErrLoanNotFound)
}
