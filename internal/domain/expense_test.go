package domain

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantOK  bool
		queryOK bool
	}{
		{"Food", CategoryFood, true, true},
		{"Transportation", CategoryTransportation, true, true},
		{"food", "", false, false},
		{" Food", "", false, false},
		{"Clothing", "", false, true},
		{"All", "", false, true},
		{"", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)

			_, ok = ParseQueryCategory(tt.in)
			assert.Equal(t, tt.queryOK, ok)
		})
	}
}

func TestEndOfDayBoundary(t *testing.T) {
	day := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	end := EndOfDay(day)

	lastMilli := time.Date(2026, 3, 14, 23, 59, 59, 999_000_000, time.UTC)
	nextDay := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.False(t, lastMilli.After(end), "23:59:59.999 must be inside the day")
	assert.True(t, nextDay.After(end), "next midnight must be outside the day")
}

func TestFilterMatches(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	f := NewFilter("acct-1", &start, &end, CategoryFood)

	base := Expense{OwnerID: "acct-1", Category: CategoryFood, Amount: 3}

	inRange := base
	inRange.Date = time.Date(2026, 3, 14, 23, 59, 59, 999_000_000, time.UTC)
	assert.True(t, f.Matches(&inRange))

	nextDay := base
	nextDay.Date = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.False(t, f.Matches(&nextDay))

	otherOwner := inRange
	otherOwner.OwnerID = "acct-2"
	assert.False(t, f.Matches(&otherOwner))

	otherCategory := inRange
	otherCategory.Category = CategoryUtilities
	assert.False(t, f.Matches(&otherCategory))

	beforeStart := base
	beforeStart.Date = start.Add(-time.Millisecond)
	assert.False(t, f.Matches(&beforeStart))
}

func TestNewFilterAllDisablesCategory(t *testing.T) {
	f := NewFilter("acct-1", nil, nil, CategoryAll)
	assert.Equal(t, Category(""), f.Category)
	assert.True(t, f.Matches(&Expense{OwnerID: "acct-1", Category: CategoryOthers}))
}

func TestQueryFilter(t *testing.T) {
	q := Query{
		StartDate: civil.Date{Year: 2026, Month: 9, Day: 1},
		EndDate:   civil.Date{Year: 2026, Month: 10, Day: 18},
		Category:  CategoryAll,
	}
	f := q.Filter("acct-1")

	if assert.NotNil(t, f.Start) && assert.NotNil(t, f.End) {
		assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *f.Start)
		assert.Equal(t, EndOfDay(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)), *f.End)
	}
	assert.Empty(t, f.Category)
}

func TestExpensePatchApply(t *testing.T) {
	e := &Expense{Amount: 1, Category: CategoryFood, Description: "old"}
	amount := 9.5
	desc := "new"
	ExpensePatch{Amount: &amount, Description: &desc}.Apply(e)

	assert.Equal(t, 9.5, e.Amount)
	assert.Equal(t, "new", e.Description)
	assert.Equal(t, CategoryFood, e.Category)
	assert.True(t, ExpensePatch{}.Empty())
}

func TestExpenseInputDefaultsDate(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	e := ExpenseInput{Amount: 4, Category: CategoryOthers}.NewExpense("acct-1", now)
	assert.Equal(t, now, e.Date)
	assert.Equal(t, "acct-1", e.OwnerID)
	assert.Empty(t, e.ID)
}
