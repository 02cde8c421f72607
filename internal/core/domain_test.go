package core

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
		{NewDate(1, 1, 1), false},
		{NewDate(1, 1, 2), true},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	good := []string{"2025-12-28", " 2024-02-29 "}
	for _, s := range good {
		if _, err := ParseDate(s); err != nil {
			t.Fatalf("%q expected ok, got %v", s, err)
		}
	}
	bad := []string{"", "2025-13-01", "2025-02-30", "2023-02-29", "28/12/2025", "2025-12", "0001-01-01"}
	for _, s := range bad {
		_, err := ParseDate(s)
		if !IsValidation(err) {
			t.Fatalf("%q expected validation error, got %v", s, err)
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", s, err)
		}
	}

	if d, err := ParseDate("0001-01-02"); err != nil || d.String() != "0001-01-02" {
		t.Fatalf("earliest date: got %v, %v", d, err)
	}

	d, _ := ParseDate("2025-12-28")
	if d.String() != "2025-12-28" {
		t.Fatalf("String() = %q", d.String())
	}
	if d.MonthKey() != "2025-12" {
		t.Fatalf("MonthKey() = %q", d.MonthKey())
	}
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth(" 2025-01 ")
	if err != nil || m != "2025-01" {
		t.Fatalf("got %q, %v", m, err)
	}
	for _, s := range []string{"", "2025-1", "2025-13", "2025-01-01", "Jan 2025"} {
		if _, err := ParseMonth(s); !errors.Is(err, ErrInvalidMonth) {
			t.Fatalf("%q expected ErrInvalidMonth, got %v", s, err)
		}
	}
}

func TestMonthValidateAndCompare(t *testing.T) {
	if err := Month("2025-06").Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := Month("2025-6").Validate(); err == nil {
		t.Fatal("expected error for non-canonical month")
	}
	if Month("2024-12").Compare("2025-01") >= 0 {
		t.Fatal("2024-12 should sort before 2025-01")
	}
	if Month("2025-10").Compare("2025-09") <= 0 {
		t.Fatal("2025-10 should sort after 2025-09")
	}
	if got := CurrentMonth(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)); got != "2025-03" {
		t.Fatalf("CurrentMonth = %q", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: 0}).ValidateSalary(); err != nil {
		t.Fatalf("expected zero salary to be ok, got %v", err)
	}
	if err := (Money{Cents: -1}).ValidateSalary(); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Amount:   Money{Cents: 100},
		Category: "Food",
		Date:     NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		e     Expense
		field string
	}{
		{Expense{Amount: Money{Cents: 0}, Category: "c", Date: NewDate(2025, 1, 1)}, "amount"},
		{Expense{Amount: Money{Cents: -5}, Category: "c", Date: NewDate(2025, 1, 1)}, "amount"},
		{Expense{Amount: Money{Cents: 1}, Category: "  ", Date: NewDate(2025, 1, 1)}, "category"},
		{Expense{Amount: Money{Cents: 1}, Category: "c"}, "date"},
	}
	for i, tc := range bads {
		err := tc.e.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if got := ValidationField(err); got != tc.field {
			t.Fatalf("case %d expected field %q, got %q", i, tc.field, got)
		}
	}
}

func TestNewExpense(t *testing.T) {
	e, err := NewExpense(1250, " Food ", "2025-12-28", strPtr("lunch"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Category != "Food" || e.Amount.Cents != 1250 || e.Month() != "2025-12" {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if e.Note == nil || *e.Note != "lunch" {
		t.Fatalf("note not preserved: %v", e.Note)
	}

	if _, err := NewExpense(100, "Food", "2025-02-30", nil); ValidationField(err) != "date" {
		t.Fatalf("expected date validation error, got %v", err)
	}
	if _, err := NewExpense(0, "Food", "2025-02-01", nil); ValidationField(err) != "amount" {
		t.Fatalf("expected amount validation error, got %v", err)
	}
}

func TestFixedExpenseValidate(t *testing.T) {
	if _, err := NewFixedExpense("Rent", 80000, "Rent", "2025-01", ""); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if _, err := NewFixedExpense("Rent", 80000, "Rent", "2025-01", "2025-01"); err != nil {
		t.Fatalf("expected same start and end to be ok, got %v", err)
	}

	cases := []struct {
		name, category, start, end string
		amount                     int64
		field                      string
		sentinel                   error
	}{
		{"", "Rent", "2025-01", "", 100, "name", ErrEmptyName},
		{"Rent", "", "2025-01", "", 100, "category", ErrEmptyCategory},
		{"Rent", "Rent", "2025-01", "", 0, "amount", ErrInvalidAmount},
		{"Rent", "Rent", "2025-1", "", 100, "start_month", ErrInvalidMonth},
		{"Rent", "Rent", "2025-01", "2025-13", 100, "end_month", ErrInvalidMonth},
		{"Rent", "Rent", "2025-06", "2025-05", 100, "end_month", ErrEndBeforeStart},
	}
	for _, tc := range cases {
		_, err := NewFixedExpense(tc.name, tc.amount, tc.category, tc.start, tc.end)
		if ValidationField(err) != tc.field {
			t.Fatalf("%+v: expected field %q, got %v", tc, tc.field, err)
		}
		if !errors.Is(err, tc.sentinel) {
			t.Fatalf("%+v: expected %v, got %v", tc, tc.sentinel, err)
		}
	}
}

func TestFixedExpenseAppliesTo(t *testing.T) {
	rule := FixedExpense{
		Name:       "Gym",
		Amount:     Money{Cents: 1000},
		Category:   "Health",
		StartMonth: "2025-01",
		EndMonth:   "2025-06",
		Active:     true,
	}
	for _, m := range []Month{"2025-01", "2025-03", "2025-06"} {
		if !rule.AppliesTo(m) {
			t.Errorf("expected rule to apply to %s", m)
		}
	}
	for _, m := range []Month{"2024-12", "2025-07"} {
		if rule.AppliesTo(m) {
			t.Errorf("expected rule not to apply to %s", m)
		}
	}

	open := rule
	open.EndMonth = ""
	if !open.AppliesTo("2030-01") {
		t.Error("open-ended rule should apply to any later month")
	}

	inactive := rule
	inactive.Active = false
	if inactive.AppliesTo("2025-03") {
		t.Error("inactive rule should never apply")
	}
}

func TestErrorKinds(t *testing.T) {
	verr := &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	serr := &StorageError{Op: "insert expense", Err: errors.New("disk full")}

	if !IsValidation(verr) || IsStorage(verr) {
		t.Fatal("validation error misclassified")
	}
	if !IsStorage(serr) || IsValidation(serr) {
		t.Fatal("storage error misclassified")
	}
	if verr.Error() != "invalid amount: amount must be > 0" {
		t.Fatalf("unexpected message %q", verr.Error())
	}
	if ValidationField(serr) != "" {
		t.Fatal("storage error has no field")
	}
}
