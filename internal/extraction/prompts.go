package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"google.golang.org/genai"
)

const intentInstruction = "Determine if the user message is an 'expense logging' or an 'expense query'.\n" +
	"Respond with 'log' for logging and 'query' for querying.\n" +
	"Return a JSON object with a single field \"intent\"."

const expenseInstruction = "You assist in logging expenses. Extract the amount, category, date (optional), " +
	"and description from the user input, which is either a message or a photo of a receipt.\n\n" +
	"Rules:\n" +
	"- \"amount\": the total spent as a positive number, or null if it cannot be determined.\n" +
	"- \"category\": one of %s.\n" +
	"- \"date\": ISO format \"YYYY-MM-DD\", or null if the input does not mention one.\n" +
	"- \"description\": a short description of what was bought, or null if unknown.\n" +
	"Do not invent values that are not in the input.\n"

const queryInstruction = "You assist in querying expenses. Today is %s. " +
	"Extract the start_date and end_date for the query from the user's input as \"YYYY-MM-DD\". " +
	"Only include a category if the user explicitly specifies one from %s. " +
	"If the user does not mention a category, set the field to \"All\"."

func categoryNames(cats []domain.Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func queryCategories() []domain.Category {
	cats := append([]domain.Category{}, domain.Categories...)
	return append(cats, domain.CategoryClothing)
}

func buildExpenseInstruction(today time.Time) string {
	s := fmt.Sprintf(expenseInstruction, categoryNames(domain.Categories))
	if !today.IsZero() {
		s += "Today is " + today.Format("2006-01-02") + ".\n"
	}
	return s
}

func buildQueryInstruction(today time.Time) string {
	return fmt.Sprintf(queryInstruction, today.Format("2006-01-02"), categoryNames(queryCategories()))
}

func enumOf(cats []domain.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {Type: genai.TypeString, Enum: []string{string(domain.IntentLog), string(domain.IntentQuery)}},
	},
	Required: []string{"intent"},
}

var expenseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"amount":      {Type: genai.TypeNumber, Nullable: genai.Ptr(true)},
		"category":    {Type: genai.TypeString, Enum: enumOf(domain.Categories)},
		"date":        {Type: genai.TypeString, Nullable: genai.Ptr(true), Description: "YYYY-MM-DD"},
		"description": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
	},
	Required:         []string{"amount", "category", "date", "description"},
	PropertyOrdering: []string{"amount", "category", "date", "description"},
}

var querySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"start_date": {Type: genai.TypeString, Description: "YYYY-MM-DD"},
		"end_date":   {Type: genai.TypeString, Description: "YYYY-MM-DD"},
		"category":   {Type: genai.TypeString, Enum: append([]string{string(domain.CategoryAll)}, enumOf(queryCategories())...)},
	},
	Required:         []string{"category"},
	PropertyOrdering: []string{"start_date", "end_date", "category"},
}
