package core

// Totals accumulates income and expense for one grouping.
type Totals struct {
	Income  Money
	Expense Money
}

// Add counts amount under t. Unknown types are ignored.
func (t *Totals) Add(typ TransactionType, amount Money) {
	switch typ {
	case TypeIncome:
		t.Income = t.Income.Add(amount)
	case TypeExpense:
		t.Expense = t.Expense.Add(amount)
	}
}

// Balance is income minus expense.
func (t Totals) Balance() Money {
	return t.Income.Sub(t.Expense)
}

// PersonTotals is one row of the person totals report.
type PersonTotals struct {
	PersonID     int64  `json:"personId"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	IsMinor      bool   `json:"isMinor"`
	TotalIncome  Money  `json:"totalIncome"`
	TotalExpense Money  `json:"totalExpense"`
	Balance      Money  `json:"balance"`
}

// PersonTotalsReport is the per-person rollup plus grand totals.
type PersonTotalsReport struct {
	People            []PersonTotals `json:"people"`
	GrandTotalIncome  Money          `json:"grandTotalIncome"`
	GrandTotalExpense Money          `json:"grandTotalExpense"`
	GrandBalance      Money          `json:"grandBalance"`
}

// CategoryTotals is one row of the category totals report.
type CategoryTotals struct {
	CategoryID   int64   `json:"categoryId"`
	Description  string  `json:"description"`
	Purpose      Purpose `json:"purpose"`
	PurposeLabel string  `json:"purposeLabel"`
	TotalIncome  Money   `json:"totalIncome"`
	TotalExpense Money   `json:"totalExpense"`
	Balance      Money   `json:"balance"`
}

// CategoryTotalsReport is the per-category rollup plus grand totals.
type CategoryTotalsReport struct {
	Categories        []CategoryTotals `json:"categories"`
	GrandTotalIncome  Money            `json:"grandTotalIncome"`
	GrandTotalExpense Money            `json:"grandTotalExpense"`
	GrandBalance      Money            `json:"grandBalance"`
}
