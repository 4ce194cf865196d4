package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcclellann/loanTracker/pkg/logger"
	"github.com/mcclellann/loanTracker/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const loanColumns = `id, loan_id, user_id, applicant_name, applicant_email, type, amount, tenure_years,
	payment_option, repayment_months, monthly_installment, total_paid, purpose, documents, status, created_at`

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// A single connection serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	logger.Info("sqlite store ready", zap.String("path", dataSourceName))
	return s, nil
}

// initSchema creates the tables if they don't already exist.
// Decimal fields are TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		applicant_name TEXT NOT NULL DEFAULT '',
		applicant_email TEXT,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		tenure_years INTEGER NOT NULL,
		payment_option TEXT NOT NULL,
		repayment_months INTEGER NOT NULL,
		monthly_installment TEXT NOT NULL,
		total_paid TEXT NOT NULL DEFAULT '0',
		purpose TEXT NOT NULL DEFAULT '',
		documents TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_user_id ON loans(user_id);
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date DATETIME NOT NULL,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id),
		UNIQUE(loan_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a new loan together with any repayments it already carries.
func (s *SQLiteStore) Insert(ctx context.Context, loan *models.LoanRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.LoanID, loan.UserID, loan.ApplicantName, nullableString(loan.ApplicantEmail), loan.Type,
		loan.Amount, loan.TenureYears, string(loan.PaymentOption), loan.RepaymentMonths, loan.MonthlyInstallment,
		loan.TotalPaid, loan.Purpose, documentsText(loan.Documents), string(loan.Status), loan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	for i, p := range loan.Repayments {
		if err := insertRepayment(ctx, tx, loan.ID, i+1, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get retrieves a loan and its repayments by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.LoanRecord, error) {
	loans, err := s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, ErrLoanNotFound
	}
	return loans[0], nil
}

// GetAll retrieves every loan in creation order.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]*models.LoanRecord, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at, id`)
}

// FindByUser retrieves the loans owned by userID.
func (s *SQLiteStore) FindByUser(ctx context.Context, userID string) ([]*models.LoanRecord, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// UpdateFields applies a partial update inside a transaction.
func (s *SQLiteStore) UpdateFields(ctx context.Context, id string, patch models.LoanPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLoanNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get loan: %w", err)
	}

	patch.Apply(loan)

	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET user_id = ?, applicant_name = ?, applicant_email = ?, type = ?, tenure_years = ?,
		payment_option = ?, purpose = ?, documents = ?, status = ? WHERE id = ?`,
		loan.UserID, loan.ApplicantName, nullableString(loan.ApplicantEmail), loan.Type, loan.TenureYears,
		string(loan.PaymentOption), loan.Purpose, documentsText(loan.Documents), string(loan.Status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return tx.Commit()
}

// AppendPayment records a repayment and the new totals atomically.
func (s *SQLiteStore) AppendPayment(ctx context.Context, id string, payment models.PaymentRecord, totalPaid decimal.Decimal, status models.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE loans SET total_paid = ?, status = ? WHERE id = ?`, totalPaid, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update loan totals: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLoanNotFound
	}

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM repayments WHERE loan_id = ?`, id).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read repayment sequence: %w", err)
	}
	if err := insertRepayment(ctx, tx, id, seq, payment); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a loan and its repayments within a transaction.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM repayments WHERE loan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete associated repayments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// queryLoans reads all matching loan rows, closes the cursor, then loads their repayments.
func (s *SQLiteStore) queryLoans(ctx context.Context, query string, args ...any) ([]*models.LoanRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}

	loans := []*models.LoanRecord{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	rows.Close()

	if err := s.attachRepayments(ctx, loans); err != nil {
		return nil, err
	}
	return loans, nil
}

func (s *SQLiteStore) attachRepayments(ctx context.Context, loans []*models.LoanRecord) error {
	if len(loans) == 0 {
		return nil
	}

	byID := make(map[string]*models.LoanRecord, len(loans))
	placeholders := make([]string, len(loans))
	args := make([]any, len(loans))
	for i, l := range loans {
		byID[l.ID] = l
		placeholders[i] = "?"
		args[i] = l.ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT loan_id, id, date, amount, type FROM repayments WHERE loan_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY loan_id, seq`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to get repayments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var loanID, paymentType string
		var p models.PaymentRecord
		if err := rows.Scan(&loanID, &p.ID, &p.Date, &p.Amount, &paymentType); err != nil {
			return fmt.Errorf("failed to scan repayment row: %w", err)
		}
		p.Type = models.PaymentType(paymentType)
		p.Date = p.Date.UTC()
		if loan, ok := byID[loanID]; ok {
			loan.Repayments = append(loan.Repayments, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during rows iteration for repayments: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.LoanRecord, error) {
	var loan models.LoanRecord
	var email sql.NullString
	var paymentOption, status, documents string
	var created time.Time

	err := row.Scan(&loan.ID, &loan.LoanID, &loan.UserID, &loan.ApplicantName, &email, &loan.Type,
		&loan.Amount, &loan.TenureYears, &paymentOption, &loan.RepaymentMonths, &loan.MonthlyInstallment,
		&loan.TotalPaid, &loan.Purpose, &documents, &status, &created)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		loan.ApplicantEmail = &email.String
	}
	loan.PaymentOption = models.PaymentOption(paymentOption)
	loan.Status = models.Status(status)
	loan.Documents = json.RawMessage(documents)
	loan.CreatedAt = created.UTC()
	loan.Repayments = []models.PaymentRecord{}
	return &loan, nil
}

func insertRepayment(ctx context.Context, tx *sql.Tx, loanID string, seq int, p models.PaymentRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO repayments (id, loan_id, seq, date, amount, type) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, loanID, seq, p.Date, p.Amount, string(p.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to create repayment: %w", err)
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func documentsText(docs json.RawMessage) string {
	if len(docs) == 0 {
		return "[]"
	}
	return string(docs)
}
