package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"expenses/internal/core"

	_ "modernc.org/sqlite"
)

const salaryKey = "salary_cents"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, &core.StorageError{Op: "create db directory", Err: err}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &core.StorageError{Op: "open database", Err: err}
	}

	// A single connection serialises callers; each statement commits on its own.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "ping database", Err: err}
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "migrate", Err: err}
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddExpense validates and stores e, returning its new ID.
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var note sql.NullString
	if e.Note != nil {
		note = sql.NullString{String: *e.Note, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (amount_cents, category, expense_date, note)
		VALUES (?, ?, ?, ?)`,
		e.Amount.Cents, e.Category, e.Date.String(), note)
	if err != nil {
		return 0, &core.StorageError{Op: "insert expense", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &core.StorageError{Op: "insert expense", Err: err}
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"date", e.Date.String())

	return id, nil
}

// GetExpense returns the expense with the given ID. The boolean is false
// when no such row exists.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, amount_cents, category, expense_date, note
		FROM expenses
		WHERE id = ?`, id)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, &core.StorageError{Op: "get expense", Err: err}
	}
	return e, true, nil
}

// ListExpensesForMonth returns the month's expenses ordered by date, then ID.
func (r *SQLiteRepository) ListExpensesForMonth(ctx context.Context, month core.Month) ([]core.Expense, error) {
	if err := month.Validate(); err != nil {
		return nil, &core.ValidationError{Field: "month", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, category, expense_date, note
		FROM expenses
		WHERE substr(expense_date, 1, 7) = ?
		ORDER BY expense_date ASC, id ASC`, month.String())
	if err != nil {
		return nil, &core.StorageError{Op: "list expenses", Err: err}
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, &core.StorageError{Op: "scan expense", Err: err}
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list expenses", Err: err}
	}
	return expenses, nil
}

// DeleteExpense removes the expense and reports whether a row existed.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return false, &core.StorageError{Op: "delete expense", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &core.StorageError{Op: "delete expense", Err: err}
	}
	if n > 0 {
		slog.InfoContext(ctx, "Expense deleted", "id", id)
	}
	return n > 0, nil
}

// ListMonths returns every month with at least one expense, most recent first.
func (r *SQLiteRepository) ListMonths(ctx context.Context) ([]core.Month, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT substr(expense_date, 1, 7) AS month
		FROM expenses
		ORDER BY month DESC`)
	if err != nil {
		return nil, &core.StorageError{Op: "list months", Err: err}
	}
	defer rows.Close()

	months := []core.Month{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, &core.StorageError{Op: "scan month", Err: err}
		}
		months = append(months, core.Month(m))
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list months", Err: err}
	}
	return months, nil
}

// AddFixedExpense validates and stores an active rule, returning its new ID.
func (r *SQLiteRepository) AddFixedExpense(ctx context.Context, f core.FixedExpense) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}

	var end sql.NullString
	if !f.EndMonth.IsZero() {
		end = sql.NullString{String: f.EndMonth.String(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO fixed_expenses (name, amount_cents, category, start_month, end_month, active)
		VALUES (?, ?, ?, ?, ?, 1)`,
		f.Name, f.Amount.Cents, f.Category, f.StartMonth.String(), end)
	if err != nil {
		return 0, &core.StorageError{Op: "insert fixed expense", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &core.StorageError{Op: "insert fixed expense", Err: err}
	}

	slog.InfoContext(ctx, "Fixed expense saved",
		"id", id,
		"name", f.Name,
		"amount_cents", f.Amount.Cents,
		"category", f.Category,
		"start_month", f.StartMonth.String(),
		"end_month", f.EndMonth.String())

	return id, nil
}

// ListFixedExpenses returns all rules, active ones first, then by name.
func (r *SQLiteRepository) ListFixedExpenses(ctx context.Context) ([]core.FixedExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, category, start_month, end_month, active
		FROM fixed_expenses
		ORDER BY active DESC, name ASC, id ASC`)
	if err != nil {
		return nil, &core.StorageError{Op: "list fixed expenses", Err: err}
	}
	defer rows.Close()

	rules := []core.FixedExpense{}
	for rows.Next() {
		var (
			f      core.FixedExpense
			start  string
			end    sql.NullString
			active int64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Amount.Cents, &f.Category, &start, &end, &active); err != nil {
			return nil, &core.StorageError{Op: "scan fixed expense", Err: err}
		}
		f.StartMonth = core.Month(start)
		if end.Valid {
			f.EndMonth = core.Month(end.String)
		}
		f.Active = active != 0
		rules = append(rules, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list fixed expenses", Err: err}
	}
	return rules, nil
}

// DeleteFixedExpense removes the rule and reports whether a row existed.
func (r *SQLiteRepository) DeleteFixedExpense(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fixed_expenses WHERE id = ?`, id)
	if err != nil {
		return false, &core.StorageError{Op: "delete fixed expense", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &core.StorageError{Op: "delete fixed expense", Err: err}
	}
	if n > 0 {
		slog.InfoContext(ctx, "Fixed expense deleted", "id", id)
	}
	return n > 0, nil
}

// SetFixedActive sets the active flag. A missing ID is a no-op.
func (r *SQLiteRepository) SetFixedActive(ctx context.Context, id int64, active bool) error {
	flag := 0
	if active {
		flag = 1
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE fixed_expenses SET active = ? WHERE id = ?`, flag, id); err != nil {
		return &core.StorageError{Op: "update fixed expense", Err: err}
	}
	slog.DebugContext(ctx, "Fixed expense active flag set", "id", id, "active", active)
	return nil
}

// FixedTotalForMonth sums the active rules whose range covers month.
func (r *SQLiteRepository) FixedTotalForMonth(ctx context.Context, month core.Month) (core.Money, error) {
	if err := month.Validate(); err != nil {
		return core.Money{}, &core.ValidationError{Field: "month", Err: err}
	}

	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM fixed_expenses
		WHERE active = 1
		  AND start_month <= ?
		  AND (end_month IS NULL OR end_month >= ?)`,
		month.String(), month.String()).Scan(&total)
	if err != nil {
		return core.Money{}, &core.StorageError{Op: "sum fixed expenses", Err: err}
	}
	return core.Money{Cents: total}, nil
}

// SetGlobalSalary overwrites the stored salary.
func (r *SQLiteRepository) SetGlobalSalary(ctx context.Context, salary core.Money) error {
	if err := salary.ValidateSalary(); err != nil {
		return &core.ValidationError{Field: "salary", Err: err}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		salaryKey, strconv.FormatInt(salary.Cents, 10))
	if err != nil {
		return &core.StorageError{Op: "save salary", Err: err}
	}

	slog.InfoContext(ctx, "Global salary saved", "amount_cents", salary.Cents)
	return nil
}

// GlobalSalary returns the stored salary, or zero when never set.
func (r *SQLiteRepository) GlobalSalary(ctx context.Context) (core.Money, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, salaryKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, &core.StorageError{Op: "get salary", Err: err}
	}

	cents, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return core.Money{}, &core.StorageError{Op: "get salary", Err: fmt.Errorf("parse %q: %w", value, err)}
	}
	return core.Money{Cents: cents}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
		note sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Amount.Cents, &e.Category, &date, &note); err != nil {
		return core.Expense{}, err
	}
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d has malformed date %q: %w", e.ID, date, err)
	}
	e.Date = core.Date{Time: t}
	if note.Valid {
		n := note.String
		e.Note = &n
	}
	return e, nil
}
