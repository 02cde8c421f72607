package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string
	Amount   Money
}

// DailyAmount represents an amount aggregated by calendar day.
type DailyAmount struct {
	Date   Date
	Amount Money
}

// IncomeVsSpend compares the global salary with a month's spending.
// Net may be negative.
type IncomeVsSpend struct {
	Salary     Money
	Variable   Money
	Fixed      Money
	TotalSpend Money
	Net        Money
}

// MonthReport is everything derived for one month.
type MonthReport struct {
	Month      Month
	Income     IncomeVsSpend
	ByCategory []CategoryAmount // fixed and variable combined
	Daily      []DailyAmount
}

// IsEmpty reports whether the month had neither expenses nor applicable
// fixed rules.
func (r MonthReport) IsEmpty() bool {
	return len(r.Daily) == 0 && r.Income.Fixed.Cents == 0
}
