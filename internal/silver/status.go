package silver

import (
	"strings"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// statusRule maps a keyword test to a normalized status. Rules are evaluated
// in order and the first match wins; the ordering below is the authoritative
// contract and encodes accumulated fixes for real EPAR spellings
// ("Not Authorised", "Suspension Lifted", "Expired", "Not Renewed"). Do not
// reorder without a failing input to justify it.
type statusRule struct {
	status  model.Status
	matches func(s string) bool
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// negatedAuthorisation guards the generic AUTHORIS rule against spellings
// that contain the keyword but mean the opposite.
func negatedAuthorisation(s string) bool {
	return containsAny(s,
		"NOT AUTHORIS",
		"UNAUTHORIS",
		"NON-AUTHORIS",
		"NON AUTHORIS",
		"DE-AUTHORIS",
		"PRE-AUTHORIS",
	)
}

var statusRules = []statusRule{
	// 1. Explicit refusal is terminal and beats everything.
	{model.StatusRejected, func(s string) bool { return strings.Contains(s, "REFUS") }},
	// 2. Withdrawal, expiry, and non-renewal all mean the authorisation ended.
	{model.StatusWithdrawn, func(s string) bool { return containsAny(s, "WITHDRAW", "EXPIR", "NOT RENEWED") }},
	// 3. A lifted suspension restores approval; must precede the SUSPEN rule.
	{model.StatusApproved, func(s string) bool { return strings.Contains(s, "LIFTED") }},
	{model.StatusSuspended, func(s string) bool { return strings.Contains(s, "SUSPEN") }},
	{model.StatusConditionalApproval, func(s string) bool { return strings.Contains(s, "CONDITIONAL") }},
	{model.StatusExceptionalCircumstances, func(s string) bool { return strings.Contains(s, "EXCEPTIONAL") }},
	// 7. Generic authorised/authorisation, guarded against negations.
	{model.StatusApproved, func(s string) bool {
		return strings.Contains(s, "AUTHORIS") && !negatedAuthorisation(s)
	}},
}

// NormalizeStatus maps a free-text authorisation status to the closed status
// vocabulary using prioritized case-insensitive substring rules. Unmatched or
// empty input yields StatusUnknown, never an error.
func NormalizeStatus(raw string) model.Status {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return model.StatusUnknown
	}
	for _, rule := range statusRules {
		if rule.matches(s) {
			return rule.status
		}
	}
	return model.StatusUnknown
}
