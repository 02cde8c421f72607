package core

import (
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

type (
	// Month is a calendar month key in YYYY-MM form. Lexicographic order
	// equals chronological order, so plain string comparison is valid.
	Month string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID       int64 // Database ID, zero until stored
		Amount   Money
		Category string
		Date     Date
		Note     *string // nil means no note
	}

	// FixedExpense is a monthly charge applied to every month in
	// [StartMonth, EndMonth] while Active. An empty EndMonth is open-ended.
	FixedExpense struct {
		ID         int64
		Name       string
		Amount     Money
		Category   string
		StartMonth Month
		EndMonth   Month
		Active     bool
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string into a Date. 0001-01-01 is the zero
// Date and is rejected; see Validate.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil || t.IsZero() {
		return Date{}, &ValidationError{Field: "date", Err: ErrInvalidDate}
	}
	return Date{Time: t}, nil
}

// Validate rejects the zero Date, which marks an unset date. The earliest
// storable date is therefore 0001-01-02.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the month the date falls in.
func (d Date) MonthKey() Month {
	return Month(d.Format(MonthLayout))
}

// ParseMonth parses a YYYY-MM string and returns its canonical form.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return "", &ValidationError{Field: "month", Err: ErrInvalidMonth}
	}
	return Month(t.Format(MonthLayout)), nil
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) Month {
	return Month(now.Format(MonthLayout))
}

func (m Month) Validate() error {
	t, err := time.Parse(MonthLayout, string(m))
	if err != nil || t.Format(MonthLayout) != string(m) {
		return ErrInvalidMonth
	}
	return nil
}

func (m Month) String() string {
	return string(m)
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m == ""
}

// Compare returns -1, 0 or +1 depending on whether m is before, equal to
// or after other.
func (m Month) Compare(other Month) int {
	return strings.Compare(string(m), string(other))
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateSalary accepts zero, unlike Validate.
func (m Money) ValidateSalary() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if strings.TrimSpace(e.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	return nil
}

// Month returns the month the expense belongs to.
func (e Expense) Month() Month {
	return e.Date.MonthKey()
}

func (f FixedExpense) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if err := f.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if strings.TrimSpace(f.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if err := f.StartMonth.Validate(); err != nil {
		return &ValidationError{Field: "start_month", Err: err}
	}
	if !f.EndMonth.IsZero() {
		if err := f.EndMonth.Validate(); err != nil {
			return &ValidationError{Field: "end_month", Err: err}
		}
		if f.EndMonth.Compare(f.StartMonth) < 0 {
			return &ValidationError{Field: "end_month", Err: ErrEndBeforeStart}
		}
	}
	return nil
}

// AppliesTo reports whether the rule contributes to month m.
func (f FixedExpense) AppliesTo(m Month) bool {
	if !f.Active {
		return false
	}
	if f.StartMonth.Compare(m) > 0 {
		return false
	}
	return f.EndMonth.IsZero() || f.EndMonth.Compare(m) >= 0
}

// NewExpense builds a validated Expense from raw input. An empty note is
// kept as a present, empty note; pass nil for no note.
func NewExpense(amountCents int64, category, date string, note *string) (Expense, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Expense{}, err
	}
	e := Expense{
		Amount:   Money{Cents: amountCents},
		Category: strings.TrimSpace(category),
		Date:     d,
		Note:     note,
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// NewFixedExpense builds a validated, active FixedExpense from raw input.
// An empty endMonth means the rule never ends.
func NewFixedExpense(name string, amountCents int64, category, startMonth, endMonth string) (FixedExpense, error) {
	start, err := ParseMonth(startMonth)
	if err != nil {
		return FixedExpense{}, &ValidationError{Field: "start_month", Err: ErrInvalidMonth}
	}
	var end Month
	if strings.TrimSpace(endMonth) != "" {
		end, err = ParseMonth(endMonth)
		if err != nil {
			return FixedExpense{}, &ValidationError{Field: "end_month", Err: ErrInvalidMonth}
		}
	}
	f := FixedExpense{
		Name:       strings.TrimSpace(name),
		Amount:     Money{Cents: amountCents},
		Category:   strings.TrimSpace(category),
		StartMonth: start,
		EndMonth:   end,
		Active:     true,
	}
	if err := f.Validate(); err != nil {
		return FixedExpense{}, err
	}
	return f, nil
}
