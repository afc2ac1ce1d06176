package notionsync

import (
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the expenses database.
const (
	propDescription = "Description"
	propExpenseID   = "Expense ID"
	propOwner       = "Owner"
	propDate        = "Date"
	propAmount      = "Amount"
	propCategory    = "Category"
	propLoggedAt    = "Logged At"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// ExpenseToNotionProperties converts an expense to the properties of its
// Notion page. The title falls back to the category when there is no
// description.
func ExpenseToNotionProperties(e *domain.Expense) notionapi.Properties {
	title := e.Description
	if title == "" {
		title = string(e.Category)
	}

	props := notionapi.Properties{
		propDescription: notionapi.TitleProperty{Title: richText(title)},
		propExpenseID:   notionapi.RichTextProperty{RichText: richText(e.ID)},
		propOwner:       notionapi.RichTextProperty{RichText: richText(e.OwnerID)},
		propDate: dateProperty(time.Date(
			e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC,
		)),
		propAmount:   notionapi.NumberProperty{Number: e.Amount},
		propCategory: notionapi.SelectProperty{Select: notionapi.Option{Name: string(e.Category)}},
	}

	if !e.CreatedAt.IsZero() {
		props[propLoggedAt] = dateProperty(e.CreatedAt.UTC())
	}

	return props
}

// extractExpenseID returns the Expense ID property of page, or "".
func extractExpenseID(page notionapi.Page) string {
	if prop, ok := page.Properties[propExpenseID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
