package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Category is the spending category of an expense.
type Category string

const (
	CategoryFood           Category = "Food"
	CategoryTransportation Category = "Transportation"
	CategoryUtilities      Category = "Utilities"
	CategoryEntertainment  Category = "Entertainment"
	CategoryOthers         Category = "Others"

	// CategoryClothing only appears on records written by older clients.
	// It can be queried but new records cannot use it.
	CategoryClothing Category = "Clothing"

	// CategoryAll is the query sentinel meaning "no category filter".
	CategoryAll Category = "All"
)

// Categories lists the categories accepted for new records, in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransportation,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryOthers,
}

// ParseCategory returns the category named exactly s.
// Matching is case-sensitive and only covers the closed set for new records.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ParseQueryCategory is like ParseCategory but also accepts the legacy
// Clothing value and the All sentinel.
func ParseQueryCategory(s string) (Category, bool) {
	if c, ok := ParseCategory(s); ok {
		return c, true
	}
	switch Category(s) {
	case CategoryClothing, CategoryAll:
		return Category(s), true
	}
	return "", false
}

// Expense is one logged spending event.
type Expense struct {
	ID          string    `json:"id,omitempty"`
	Amount      float64   `json:"amount"`
	Category    Category  `json:"category"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ExpenseInput is a validated candidate expense that has not been stored yet.
// Date is nil when the input did not carry one.
type ExpenseInput struct {
	Amount      float64
	Category    Category
	Date        *time.Time
	Description string
}

// NewExpense builds the record to persist for owner. A missing date
// defaults to now.
func (in ExpenseInput) NewExpense(ownerID string, now time.Time) *Expense {
	date := now
	if in.Date != nil {
		date = *in.Date
	}
	return &Expense{
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        date.UTC(),
		Description: in.Description,
		OwnerID:     ownerID,
	}
}

// ExpensePatch carries the fields supplied to an update. Nil fields are left
// untouched on the stored record.
type ExpensePatch struct {
	Amount      *float64
	Category    *Category
	Date        *time.Time
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p ExpensePatch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Date == nil && p.Description == nil
}

// Apply copies the supplied fields onto e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Date != nil {
		e.Date = p.Date.UTC()
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
}

// Filter selects expenses of one owner. Start and End are inclusive bounds;
// End is already extended to the end of its day by NewFilter.
type Filter struct {
	OwnerID  string
	Start    *time.Time
	End      *time.Time
	Category Category
}

// NewFilter builds a filter for owner. Nil dates leave that side open and
// CategoryAll or "" disables the category filter.
func NewFilter(ownerID string, start, end *time.Time, category Category) Filter {
	f := Filter{OwnerID: ownerID}
	if start != nil {
		s := start.UTC()
		f.Start = &s
	}
	if end != nil {
		e := EndOfDay(*end)
		f.End = &e
	}
	if category != CategoryAll {
		f.Category = category
	}
	return f
}

// Matches reports whether e falls inside the filter.
func (f Filter) Matches(e *Expense) bool {
	if e.OwnerID != f.OwnerID {
		return false
	}
	if f.Start != nil && e.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.Date.After(*f.End) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	return true
}

// EndOfDay returns the last nanosecond of t's calendar day in UTC.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start.Add(24*time.Hour - time.Nanosecond)
}

// Query is a validated spending query: an inclusive date range and a
// category, which may be CategoryAll.
type Query struct {
	StartDate civil.Date
	EndDate   civil.Date
	Category  Category
}

// Filter converts q into a store filter for owner.
func (q Query) Filter(ownerID string) Filter {
	start := q.StartDate.In(time.UTC)
	end := q.EndDate.In(time.UTC)
	return NewFilter(ownerID, &start, &end, q.Category)
}
