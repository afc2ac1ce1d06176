// Package validation checks untrusted expense and query candidates, whether
// they come from HTTP clients or from the language model.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastos/internal/domain"
)

// Field names as they appear in candidates.
const (
	FieldAmount         = "amount"
	FieldCategory       = "category"
	FieldDate           = "date"
	FieldDescription    = "description"
	FieldTelegramUserID = "telegramUserId"
	FieldStartDate      = "start_date"
	FieldEndDate        = "end_date"
)

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	dateLayout,
}

// DecodeCandidate decodes a JSON object keeping numbers as json.Number.
func DecodeCandidate(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("DecodeCandidate: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("DecodeCandidate: body is not a JSON object")
	}
	return m, nil
}

// ValidateExpense checks a full expense candidate. Amount and category are
// required; date, description and telegramUserId are optional. All failing
// fields are reported together.
func ValidateExpense(candidate map[string]any) (domain.ExpenseInput, error) {
	verr := &domain.ValidationError{}
	var in domain.ExpenseInput

	if amount, ok := checkAmount(candidate, verr); ok {
		in.Amount = amount
	} else if !present(candidate, FieldAmount) {
		verr.Add(FieldAmount, "is required")
	}

	if cat, ok := checkCategory(candidate, verr); ok {
		in.Category = cat
	} else if !present(candidate, FieldCategory) {
		verr.Add(FieldCategory, "is required")
	}

	in.Date = checkDate(candidate, verr)
	if desc, ok := checkString(candidate, FieldDescription, verr); ok {
		in.Description = strings.TrimSpace(desc)
	}
	checkString(candidate, FieldTelegramUserID, verr)

	if err := verr.OrNil(); err != nil {
		return domain.ExpenseInput{}, err
	}
	return in, nil
}

// ValidatePatch checks a partial expense. Only supplied fields are checked
// and nothing is required.
func ValidatePatch(candidate map[string]any) (domain.ExpensePatch, error) {
	verr := &domain.ValidationError{}
	var p domain.ExpensePatch

	if amount, ok := checkAmount(candidate, verr); ok {
		p.Amount = &amount
	}
	if cat, ok := checkCategory(candidate, verr); ok {
		p.Category = &cat
	}
	p.Date = checkDate(candidate, verr)
	if desc, ok := checkString(candidate, FieldDescription, verr); ok {
		desc = strings.TrimSpace(desc)
		p.Description = &desc
	}
	checkString(candidate, FieldTelegramUserID, verr)

	if err := verr.OrNil(); err != nil {
		return domain.ExpensePatch{}, err
	}
	return p, nil
}

// ValidateQuery checks a spending query candidate. A missing start date
// defaults to the first day of today's month, a missing end date to today
// and a missing category to All.
func ValidateQuery(candidate map[string]any, today time.Time) (domain.Query, error) {
	verr := &domain.ValidationError{}
	q := DefaultQuery(today)

	if d, ok := checkCivilDate(candidate, FieldStartDate, verr); ok {
		q.StartDate = d
	}
	if d, ok := checkCivilDate(candidate, FieldEndDate, verr); ok {
		q.EndDate = d
	}

	if s, ok := checkString(candidate, FieldCategory, verr); ok && strings.TrimSpace(s) != "" {
		if cat, ok := domain.ParseQueryCategory(s); ok {
			q.Category = cat
		} else {
			verr.Add(FieldCategory, "%q is not a known category", s)
		}
	}

	if !verr.Has(FieldStartDate) && !verr.Has(FieldEndDate) && q.EndDate.Before(q.StartDate) {
		verr.Add(FieldEndDate, "is before start_date")
	}

	if err := verr.OrNil(); err != nil {
		return domain.Query{}, err
	}
	return q, nil
}

// DefaultQuery covers the month of today up to today, all categories.
func DefaultQuery(today time.Time) domain.Query {
	d := civil.DateOf(today)
	return domain.Query{
		StartDate: civil.Date{Year: d.Year, Month: d.Month, Day: 1},
		EndDate:   d,
		Category:  domain.CategoryAll,
	}
}

// ParseDate parses the date formats accepted in expense candidates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func present(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func checkAmount(m map[string]any, verr *domain.ValidationError) (float64, bool) {
	v, ok := m[FieldAmount]
	if !ok || v == nil {
		return 0, false
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			verr.Add(FieldAmount, "must be a number")
			return 0, false
		}
		f = parsed
	default:
		verr.Add(FieldAmount, "must be a number, got %T", v)
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		verr.Add(FieldAmount, "must be a finite number")
		return 0, false
	}
	if f < 0 {
		verr.Add(FieldAmount, "must not be negative")
		return 0, false
	}
	return f, true
}

func checkCategory(m map[string]any, verr *domain.ValidationError) (domain.Category, bool) {
	s, ok := checkString(m, FieldCategory, verr)
	if !ok {
		return "", false
	}
	cat, ok := domain.ParseCategory(s)
	if !ok {
		verr.Add(FieldCategory, "%q is not one of %v", s, domain.Categories)
		return "", false
	}
	return cat, true
}

func checkDate(m map[string]any, verr *domain.ValidationError) *time.Time {
	v, ok := m[FieldDate]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case time.Time:
		t := val.UTC()
		return &t
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		t, err := ParseDate(val)
		if err != nil {
			verr.Add(FieldDate, "must be a date, got %q", val)
			return nil
		}
		return &t
	default:
		verr.Add(FieldDate, "must be a date string, got %T", v)
		return nil
	}
}

func checkCivilDate(m map[string]any, key string, verr *domain.ValidationError) (civil.Date, bool) {
	s, ok := checkString(m, key, verr)
	if !ok || strings.TrimSpace(s) == "" {
		return civil.Date{}, false
	}
	t, err := ParseDate(s)
	if err != nil {
		verr.Add(key, "must be YYYY-MM-DD, got %q", s)
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

func checkString(m map[string]any, key string, verr *domain.ValidationError) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		verr.Add(key, "must be a string, got %T", v)
		return "", false
	}
	return s, true
}
