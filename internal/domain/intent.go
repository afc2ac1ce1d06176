package domain

import "strings"

// Intent is what a free-text chat message asks for.
type Intent string

const (
	IntentLog   Intent = "log"
	IntentQuery Intent = "query"
)

// Intents lists every intent the classifier may return.
var Intents = []Intent{IntentLog, IntentQuery}

// ParseIntent accepts an intent label in any case, ignoring surrounding space.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentLog:
		return IntentLog, true
	case IntentQuery:
		return IntentQuery, true
	}
	return "", false
}
