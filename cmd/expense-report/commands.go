package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"expenses/internal/core"
	"expenses/internal/reports"
)

type ledgerStore interface {
	reports.Ledger
	ListMonths(ctx context.Context) ([]core.Month, error)
}

type ledgerMutator interface {
	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	DeleteExpense(ctx context.Context, id int64) (bool, error)
	AddFixedExpense(ctx context.Context, f core.FixedExpense) (int64, error)
	DeleteFixedExpense(ctx context.Context, id int64) (bool, error)
	SetFixedActive(ctx context.Context, id int64, active bool) error
	SetGlobalSalary(ctx context.Context, salary core.Money) error
}

type app struct {
	store      ledgerStore
	service    ledgerMutator
	engine     *reports.Engine
	exporter   *reports.Exporter
	reportsDir string
	now        func() time.Time
	out        io.Writer
}

const usage = `usage: expense-report <command> [flags]

commands:
  report        print the month report (-month)
  export        write the month report artifact (-month, -format)
  months        list months that have expenses
  list          list the expenses of a month with their IDs (-month)
  add           add an expense (-amount, -category, -date, -note)
  delete        delete an expense (-id)
  fixed-add     add a fixed expense (-name, -amount, -category, -start, -end)
  fixed-list    list fixed expenses
  fixed-delete  delete a fixed expense (-id)
  fixed-toggle  enable or disable a fixed expense (-id, -active)
  salary        show or set the global salary (-amount)`

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "report":
		return a.report(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "months":
		return a.months(ctx)
	case "list":
		return a.listExpenses(ctx, rest)
	case "add":
		return a.addExpense(ctx, rest)
	case "delete":
		return a.deleteExpense(ctx, rest)
	case "fixed-add":
		return a.addFixed(ctx, rest)
	case "fixed-list":
		return a.listFixed(ctx)
	case "fixed-delete":
		return a.deleteFixed(ctx, rest)
	case "fixed-toggle":
		return a.toggleFixed(ctx, rest)
	case "salary":
		return a.salary(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// monthFlag resolves -month, defaulting to the current month.
func (a *app) monthFlag(value string) (core.Month, error) {
	if value == "" {
		return core.CurrentMonth(a.now()), nil
	}
	return core.ParseMonth(value)
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := newFlagSet("report")
	month := fs.String("month", "", "month as YYYY-MM (default current month)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.monthFlag(*month)
	if err != nil {
		return err
	}

	r, err := a.engine.MonthReport(ctx, m)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Report for %s\n\n", r.Month)
	fmt.Fprintf(a.out, "  %-12s %12s\n", "Salary", r.Income.Salary)
	fmt.Fprintf(a.out, "  %-12s %12s\n", "Fixed", r.Income.Fixed)
	fmt.Fprintf(a.out, "  %-12s %12s\n", "Variable", r.Income.Variable)
	fmt.Fprintf(a.out, "  %-12s %12s\n", "Total spend", r.Income.TotalSpend)
	fmt.Fprintf(a.out, "  %-12s %12s\n", "Net", r.Income.Net)

	if r.IsEmpty() {
		fmt.Fprintln(a.out, "\nNo expenses recorded for this month.")
		return nil
	}

	fmt.Fprintln(a.out, "\nBy category")
	for _, c := range r.ByCategory {
		fmt.Fprintf(a.out, "  %-20s %12s\n", c.Category, c.Amount)
	}

	if len(r.Daily) > 0 {
		fmt.Fprintln(a.out, "\nBy day")
		for _, d := range r.Daily {
			fmt.Fprintf(a.out, "  %-20s %12s\n", d.Date, d.Amount)
		}
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	month := fs.String("month", "", "month as YYYY-MM (default current month)")
	format := fs.String("format", "", "json, yaml or csv (default REPORT_FORMAT)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.monthFlag(*month)
	if err != nil {
		return err
	}

	exporter := a.exporter
	if *format != "" {
		exporter, err = reports.NewExporter(a.engine, a.reportsDir, reports.Format(strings.ToLower(*format)))
		if err != nil {
			return err
		}
	}

	path, err := exporter.Export(ctx, m)
	if errors.Is(err, reports.ErrNoData) {
		fmt.Fprintf(a.out, "No data for %s, nothing exported\n", m)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) months(ctx context.Context) error {
	months, err := a.store.ListMonths(ctx)
	if err != nil {
		return err
	}
	for _, m := range months {
		fmt.Fprintln(a.out, m)
	}
	return nil
}

func (a *app) listExpenses(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	month := fs.String("month", "", "month as YYYY-MM (default current month)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := a.monthFlag(*month)
	if err != nil {
		return err
	}

	rows, err := a.store.ListExpensesForMonth(ctx, m)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(a.out, "No expenses found for %s\n", m)
		return nil
	}
	for _, e := range rows {
		// "-" means no note; an empty note prints as "".
		note := "-"
		if e.Note != nil {
			note = fmt.Sprintf("%q", *e.Note)
		}
		fmt.Fprintf(a.out, "%4d  %s  %-20s %12s  %s\n", e.ID, e.Date, e.Category, e.Amount, note)
	}
	return nil
}

func (a *app) addExpense(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	amount := fs.String("amount", "", "amount, e.g. 12.50")
	category := fs.String("category", "", "category name")
	date := fs.String("date", "", "date as YYYY-MM-DD (default today)")
	note := fs.String("note", "", "optional note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cents, err := core.ParseDecimalToCents(*amount)
	if err != nil {
		return &core.ValidationError{Field: "amount", Err: err}
	}
	if *date == "" {
		*date = a.now().Format(core.DateLayout)
	}

	// An explicitly passed empty note is kept distinct from no note.
	var notePtr *string
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "note" {
			notePtr = note
		}
	})

	e, err := core.NewExpense(cents, *category, *date, notePtr)
	if err != nil {
		return err
	}
	id, err := a.service.AddExpense(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added expense %d: %s %s on %s\n", id, e.Amount, e.Category, e.Date)
	return nil
}

// idFlags parses -id and, for fixed-toggle, -active.
func idFlags(name string, args []string) (int64, bool, error) {
	fs := newFlagSet(name)
	id := fs.Int64("id", 0, "row ID")
	active := fs.Bool("active", true, "active flag")
	if err := fs.Parse(args); err != nil {
		return 0, false, err
	}
	if *id <= 0 {
		return 0, false, errors.New("-id is required")
	}
	return *id, *active, nil
}

func (a *app) deleteExpense(ctx context.Context, args []string) error {
	id, _, err := idFlags("delete", args)
	if err != nil {
		return err
	}
	deleted, err := a.service.DeleteExpense(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintf(a.out, "Expense %d not found\n", id)
		return nil
	}
	fmt.Fprintf(a.out, "Deleted expense %d\n", id)
	return nil
}

func (a *app) addFixed(ctx context.Context, args []string) error {
	fs := newFlagSet("fixed-add")
	name := fs.String("name", "", "rule name")
	amount := fs.String("amount", "", "monthly amount, e.g. 800.00")
	category := fs.String("category", "", "category name")
	start := fs.String("start", "", "first month as YYYY-MM (default current month)")
	end := fs.String("end", "", "last month as YYYY-MM (default open-ended)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cents, err := core.ParseDecimalToCents(*amount)
	if err != nil {
		return &core.ValidationError{Field: "amount", Err: err}
	}
	if *start == "" {
		*start = core.CurrentMonth(a.now()).String()
	}

	f, err := core.NewFixedExpense(*name, cents, *category, *start, *end)
	if err != nil {
		return err
	}
	id, err := a.service.AddFixedExpense(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added fixed expense %d: %s %s from %s\n", id, f.Name, f.Amount, f.StartMonth)
	return nil
}

func (a *app) listFixed(ctx context.Context) error {
	rules, err := a.store.ListFixedExpenses(ctx)
	if err != nil {
		return err
	}
	for _, f := range rules {
		end := "open"
		if !f.EndMonth.IsZero() {
			end = f.EndMonth.String()
		}
		status := "active"
		if !f.Active {
			status = "inactive"
		}
		fmt.Fprintf(a.out, "%4d  %-20s %-14s %12s  %s..%s  %s\n",
			f.ID, f.Name, f.Category, f.Amount, f.StartMonth, end, status)
	}
	return nil
}

func (a *app) deleteFixed(ctx context.Context, args []string) error {
	id, _, err := idFlags("fixed-delete", args)
	if err != nil {
		return err
	}
	deleted, err := a.service.DeleteFixedExpense(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintf(a.out, "Fixed expense %d not found\n", id)
		return nil
	}
	fmt.Fprintf(a.out, "Deleted fixed expense %d\n", id)
	return nil
}

func (a *app) toggleFixed(ctx context.Context, args []string) error {
	id, active, err := idFlags("fixed-toggle", args)
	if err != nil {
		return err
	}
	if err := a.service.SetFixedActive(ctx, id, active); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Fixed expense %d active=%t\n", id, active)
	return nil
}

func (a *app) salary(ctx context.Context, args []string) error {
	fs := newFlagSet("salary")
	amount := fs.String("amount", "", "monthly salary, e.g. 2500.00")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := false
	fs.Visit(func(f *flag.Flag) { set = set || f.Name == "amount" })
	if !set {
		salary, err := a.store.GlobalSalary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Salary: %s\n", salary)
		return nil
	}

	cents, err := core.ParseSalaryToCents(*amount)
	if err != nil {
		return &core.ValidationError{Field: "salary", Err: err}
	}
	if err := a.service.SetGlobalSalary(ctx, core.Money{Cents: cents}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Salary set to %s\n", core.Money{Cents: cents})
	return nil
}
