package dispatcher

import (
	"fmt"
	"strings"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	msgUnrecognized  = "Huh?"
	msgNotUnderstood = "I didn't understand your request. Could you clarify?"
	msgClarify       = "Could you provide more details about this expense, like the category or date?"
	msgNotLinked     = "You don't seem to be linked to an account yet. Please use the /start command to link your account."
	msgFetchFailed   = "Failed to fetch file from Telegram"
	msgLogFailed     = "Failed to log expense."
	msgQueryFailed   = "Failed to fetch your expenses."
	msgResolveFailed = "Something went wrong while looking up your account. Please try again later."
)

func formatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func sumAmounts(expenses []*domain.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}
	return total
}

func formatLogged(e *domain.Expense) string {
	return fmt.Sprintf("Logged your spending of $%s on %s with description: \"%s\".",
		formatAmount(e.Amount), e.Category, e.Description)
}

func formatTotal(q domain.Query, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total spending from %s to %s", q.StartDate, q.EndDate)
	if q.Category != domain.CategoryAll {
		fmt.Fprintf(&b, " on %s", q.Category)
	}
	fmt.Fprintf(&b, " is $%s.", total.StringFixed(2))
	return b.String()
}

func formatExpenseLine(i int, e *domain.Expense) string {
	return fmt.Sprintf("%d. %s - $%s - %s - %s (id: %s)",
		i, e.Description, formatAmount(e.Amount), e.Category, e.Date.Format("2006-01-02"), e.ID)
}
