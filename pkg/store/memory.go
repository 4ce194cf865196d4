package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps loans in process memory. Used for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	loans map[string]*models.LoanRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{loans: make(map[string]*models.LoanRecord)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.LoanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

func (m *MemoryStore) GetAll(_ context.Context) ([]*models.LoanRecord, error) {
	return m.filter(func(*models.LoanRecord) bool { return true }), nil
}

func (m *MemoryStore) FindByUser(_ context.Context, userID string) ([]*models.LoanRecord, error) {
	return m.filter(func(l *models.LoanRecord) bool { return l.UserID == userID }), nil
}

// filter returns matching loans in creation order.
func (m *MemoryStore) filter(match func(*models.LoanRecord) bool) []*models.LoanRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := []*models.LoanRecord{}
	for _, l := range m.loans {
		if match(l) {
			loans = append(loans, l.Clone())
		}
	}
	sort.SliceStable(loans, func(i, j int) bool {
		if loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].ID < loans[j].ID
		}
		return loans[i].CreatedAt.Before(loans[j].CreatedAt)
	})
	return loans
}

func (m *MemoryStore) Insert(_ context.Context, loan *models.LoanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.loans[loan.ID]; exists {
		return fmt.Errorf("loan %s already exists", loan.ID)
	}
	m.loans[loan.ID] = loan.Clone()
	return nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, id string, patch models.LoanPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	patch.Apply(loan)
	return nil
}

func (m *MemoryStore) AppendPayment(_ context.Context, id string, payment models.PaymentRecord, totalPaid decimal.Decimal, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	loan.Repayments = append(loan.Repayments, payment)
	loan.TotalPaid = totalPaid
	loan.Status = status
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.loans, id)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
