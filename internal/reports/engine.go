// Package reports derives monthly views from ledger data.
//
// The functions in this file are pure: they take rows already loaded from
// the store and return totals, breakdowns and comparisons. Engine binds them
// to a Ledger so callers only pass a month.
package reports

import (
	"context"
	"fmt"
	"sort"

	"expenses/internal/core"
)

// Ledger is the read side of the store used by the engine.
type Ledger interface {
	ListExpensesForMonth(ctx context.Context, month core.Month) ([]core.Expense, error)
	ListFixedExpenses(ctx context.Context) ([]core.FixedExpense, error)
	GlobalSalary(ctx context.Context) (core.Money, error)
}

// MonthlyTotal sums the amounts of expenses.
func MonthlyTotal(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// CategoryBreakdown groups expenses by category, largest total first.
func CategoryBreakdown(expenses []core.Expense) []core.CategoryAmount {
	sums := make(map[string]int64)
	for _, e := range expenses {
		sums[e.Category] += e.Amount.Cents
	}
	return sortedCategories(sums)
}

// DailyTotals groups expenses by date in ascending order.
func DailyTotals(expenses []core.Expense) []core.DailyAmount {
	sums := make(map[string]int64)
	dates := make(map[string]core.Date)
	for _, e := range expenses {
		key := e.Date.String()
		sums[key] += e.Amount.Cents
		dates[key] = e.Date
	}

	out := make([]core.DailyAmount, 0, len(sums))
	for key, cents := range sums {
		out = append(out, core.DailyAmount{Date: dates[key], Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// FixedCategoryTotals groups the rules that apply to month by category.
func FixedCategoryTotals(rules []core.FixedExpense, month core.Month) []core.CategoryAmount {
	sums := make(map[string]int64)
	for _, f := range rules {
		if f.AppliesTo(month) {
			sums[f.Category] += f.Amount.Cents
		}
	}
	return sortedCategories(sums)
}

// FixedTotal sums the rules that apply to month.
func FixedTotal(rules []core.FixedExpense, month core.Month) core.Money {
	var total core.Money
	for _, f := range rules {
		if f.AppliesTo(month) {
			total = total.Add(f.Amount)
		}
	}
	return total
}

// MergeCategoryTotals adds up entries sharing the exact same category name.
func MergeCategoryTotals(lists ...[]core.CategoryAmount) []core.CategoryAmount {
	sums := make(map[string]int64)
	for _, list := range lists {
		for _, c := range list {
			sums[c.Category] += c.Amount.Cents
		}
	}
	return sortedCategories(sums)
}

// NewIncomeVsSpend computes totals and net. Net is not clamped at zero.
func NewIncomeVsSpend(salary, variable, fixed core.Money) core.IncomeVsSpend {
	total := variable.Add(fixed)
	return core.IncomeVsSpend{
		Salary:     salary,
		Variable:   variable,
		Fixed:      fixed,
		TotalSpend: total,
		Net:        salary.Sub(total),
	}
}

// sortedCategories orders by amount descending, then category name.
func sortedCategories(sums map[string]int64) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(sums))
	for category, cents := range sums {
		out = append(out, core.CategoryAmount{Category: category, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Engine answers month-parameterised questions against a Ledger.
// It never writes.
type Engine struct {
	ledger Ledger
}

func NewEngine(ledger Ledger) *Engine {
	return &Engine{ledger: ledger}
}

func (e *Engine) expenses(ctx context.Context, month core.Month) ([]core.Expense, error) {
	if err := month.Validate(); err != nil {
		return nil, &core.ValidationError{Field: "month", Err: err}
	}
	rows, err := e.ledger.ListExpensesForMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("list expenses for %s: %w", month, err)
	}
	return rows, nil
}

// MonthlyTotal returns the variable spending of month.
func (e *Engine) MonthlyTotal(ctx context.Context, month core.Month) (core.Money, error) {
	rows, err := e.expenses(ctx, month)
	if err != nil {
		return core.Money{}, err
	}
	return MonthlyTotal(rows), nil
}

// CategoryBreakdown returns variable spending of month per category.
func (e *Engine) CategoryBreakdown(ctx context.Context, month core.Month) ([]core.CategoryAmount, error) {
	rows, err := e.expenses(ctx, month)
	if err != nil {
		return nil, err
	}
	return CategoryBreakdown(rows), nil
}

// DailyTotals returns variable spending of month per day.
func (e *Engine) DailyTotals(ctx context.Context, month core.Month) ([]core.DailyAmount, error) {
	rows, err := e.expenses(ctx, month)
	if err != nil {
		return nil, err
	}
	return DailyTotals(rows), nil
}

// CombinedCategoryBreakdown merges variable spending with the fixed rules
// that apply to month.
func (e *Engine) CombinedCategoryBreakdown(ctx context.Context, month core.Month) ([]core.CategoryAmount, error) {
	rows, err := e.expenses(ctx, month)
	if err != nil {
		return nil, err
	}
	rules, err := e.ledger.ListFixedExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fixed expenses: %w", err)
	}
	return MergeCategoryTotals(CategoryBreakdown(rows), FixedCategoryTotals(rules, month)), nil
}

// IncomeVsSpend compares the global salary with month's total spending.
func (e *Engine) IncomeVsSpend(ctx context.Context, month core.Month) (core.IncomeVsSpend, error) {
	variable, err := e.MonthlyTotal(ctx, month)
	if err != nil {
		return core.IncomeVsSpend{}, err
	}
	rules, err := e.ledger.ListFixedExpenses(ctx)
	if err != nil {
		return core.IncomeVsSpend{}, fmt.Errorf("list fixed expenses: %w", err)
	}
	salary, err := e.ledger.GlobalSalary(ctx)
	if err != nil {
		return core.IncomeVsSpend{}, fmt.Errorf("get salary: %w", err)
	}
	return NewIncomeVsSpend(salary, variable, FixedTotal(rules, month)), nil
}

// MonthReport loads month once and derives every view from it.
func (e *Engine) MonthReport(ctx context.Context, month core.Month) (core.MonthReport, error) {
	rows, err := e.expenses(ctx, month)
	if err != nil {
		return core.MonthReport{}, err
	}
	rules, err := e.ledger.ListFixedExpenses(ctx)
	if err != nil {
		return core.MonthReport{}, fmt.Errorf("list fixed expenses: %w", err)
	}
	salary, err := e.ledger.GlobalSalary(ctx)
	if err != nil {
		return core.MonthReport{}, fmt.Errorf("get salary: %w", err)
	}

	return core.MonthReport{
		Month:      month,
		Income:     NewIncomeVsSpend(salary, MonthlyTotal(rows), FixedTotal(rules, month)),
		ByCategory: MergeCategoryTotals(CategoryBreakdown(rows), FixedCategoryTotals(rules, month)),
		Daily:      DailyTotals(rows),
	}, nil
}
