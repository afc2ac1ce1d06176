package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/identity"
	"github.com/dvloznov/gastos/internal/validation"
)

type commandHandler func(ctx context.Context, ev Event, args string) Reply

const helpText = "Send me a message like \"lunch 12.50 food\" or a photo of a receipt to log an expense, " +
	"or ask \"how much did I spend on food this month?\".\n\n" +
	"Commands:\n" +
	"/start - get a code to link your Gastos account\n" +
	"/link - get a link that connects your Gastos account\n" +
	"/addexpense description, amount, category[, YYYY-MM-DD] - add an expense\n" +
	"/viewexpenses - list this month's expenses\n" +
	"/deleteexpense <id> - delete an expense\n" +
	"/help - show this message"

func (d *Dispatcher) commandTable() map[string]commandHandler {
	return map[string]commandHandler{
		"/start":         d.cmdStart,
		"/link":          d.cmdLink,
		"/help":          d.cmdHelp,
		"/addexpense":    d.cmdAddExpense,
		"/viewexpenses":  d.cmdViewExpenses,
		"/deleteexpense": d.cmdDeleteExpense,
	}
}

// splitCommand separates "/cmd@bot args" into "/cmd" and "args".
func splitCommand(text string) (string, string) {
	name, args, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func (d *Dispatcher) runCommand(ctx context.Context, ev Event, text string) Reply {
	name, args := splitCommand(text)
	handler, ok := d.commands[name]
	if !ok {
		return Reply{Text: "Unknown command " + name + ".\n\n" + helpText, Outcome: OutcomeCommand}
	}
	d.log.Debug().Int64("chat_id", ev.ChatID).Str("command", name).Msg("Running command")
	return handler(ctx, ev, args)
}

func (d *Dispatcher) cmdStart(ctx context.Context, ev Event, _ string) Reply {
	code, err := d.linker.IssueCode(ctx, chatIdentity(ev))
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to issue link code")
		return Reply{Text: "Failed to generate a link code. Please try again later.", Outcome: OutcomeFailed}
	}
	return Reply{
		Text: fmt.Sprintf("Welcome! To link your account, please enter the following code in the Gastos Web App:\n\n*%s*\n\nVisit: %s/telegram-bot",
			code.Token, d.baseURL),
		ParseMode: ParseModeMarkdown,
		Outcome:   OutcomeCommand,
	}
}

func (d *Dispatcher) cmdLink(ctx context.Context, ev Event, _ string) Reply {
	tok, err := d.linker.IssueToken(ctx, chatIdentity(ev))
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to issue link token")
		return Reply{Text: "Failed to generate a link. Please try again later.", Outcome: OutcomeFailed}
	}
	return Reply{
		Text:    "Open this link while signed in to Gastos to connect your account. It expires in 15 minutes.\n\n" + identity.LinkURL(d.baseURL, tok.Token),
		Outcome: OutcomeCommand,
	}
}

func (d *Dispatcher) cmdHelp(_ context.Context, _ Event, _ string) Reply {
	return Reply{Text: helpText, Outcome: OutcomeCommand}
}

// cmdAddExpense adds an expense from "description, amount, category[, date]"
// without a model call.
func (d *Dispatcher) cmdAddExpense(ctx context.Context, ev Event, args string) Reply {
	parts := strings.Split(args, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return Reply{Text: "Please provide description, amount, category, and optionally a date (YYYY-MM-DD).", Outcome: OutcomeClarify}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	candidate := map[string]any{
		validation.FieldDescription: parts[0],
		validation.FieldAmount:      parts[1],
		validation.FieldCategory:    parts[2],
	}
	if amount, err := strconv.ParseFloat(parts[1], 64); err == nil {
		candidate[validation.FieldAmount] = amount
	}
	if len(parts) == 4 {
		candidate[validation.FieldDate] = parts[3]
	}

	in, err := validation.ValidateExpense(candidate)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return Reply{Text: "Please check the expense: " + describeFields(verr) + ".", Outcome: OutcomeClarify}
		}
		return Reply{Text: "Failed to add expense. Please try again.", Outcome: OutcomeFailed}
	}

	e, reply, ok := d.createFor(ctx, ev, in, "Failed to add expense. Please try again.")
	if !ok {
		return reply
	}
	return Reply{Text: fmt.Sprintf("Expense \"%s\" added successfully!", e.Description), Outcome: OutcomeLogged}
}

func describeFields(verr *domain.ValidationError) string {
	parts := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// cmdViewExpenses lists the current month's expenses.
func (d *Dispatcher) cmdViewExpenses(ctx context.Context, ev Event, _ string) Reply {
	accountID, reply, ok := d.resolve(ctx, ev)
	if !ok {
		return reply
	}

	q := validation.DefaultQuery(d.now())
	expenses, err := d.store.List(ctx, q.Filter(accountID))
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Failed to list expenses")
		return Reply{Text: "An error occurred while retrieving expenses.", Outcome: OutcomeFailed}
	}
	if len(expenses) == 0 {
		return Reply{Text: "No expenses found.", Outcome: OutcomeQueried}
	}

	var b strings.Builder
	b.WriteString("Your expenses:\n")
	for i, e := range expenses {
		b.WriteString(formatExpenseLine(i+1, e))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total: $%s", sumAmounts(expenses).StringFixed(2))
	return Reply{Text: b.String(), Outcome: OutcomeQueried}
}

// cmdDeleteExpense deletes one of the sender's expenses. Records owned by
// another account are reported as not found.
func (d *Dispatcher) cmdDeleteExpense(ctx context.Context, ev Event, args string) Reply {
	id := strings.TrimSpace(args)
	if id == "" {
		return Reply{Text: "Please provide the expense ID: /deleteexpense <id>", Outcome: OutcomeClarify}
	}

	accountID, reply, ok := d.resolve(ctx, ev)
	if !ok {
		return reply
	}

	notFound := Reply{Text: fmt.Sprintf("Expense ID %s not found.", id), Outcome: OutcomeFailed}
	e, err := d.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return notFound
	}
	if err != nil {
		d.log.Error().Err(err).Str("expense_id", id).Msg("Failed to load expense")
		return Reply{Text: "Failed to delete expense.", Outcome: OutcomeFailed}
	}
	if e.OwnerID != accountID {
		d.log.Warn().Int64("chat_id", ev.ChatID).Str("expense_id", id).Msg("Delete of foreign expense refused")
		return notFound
	}

	if err := d.store.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound
		}
		d.log.Error().Err(err).Str("expense_id", id).Msg("Failed to delete expense")
		return Reply{Text: "Failed to delete expense.", Outcome: OutcomeFailed}
	}
	return Reply{Text: fmt.Sprintf("Expense ID %s deleted successfully!", id), Outcome: OutcomeCommand}
}
