// Package intent classifies free-text customer input. It is the single
// keyword table both the front door and the reply workflow consult.
package intent

import "strings"

type Intent string

const (
	DelayInquiry  Intent = "delay_inquiry"
	StatusQuery   Intent = "status_query"
	AddressChange Intent = "address_change"
	General       Intent = "general"
)

// rule matches when the lower-cased text contains any of anyOf, or all of allOf.
type rule struct {
	intent Intent
	anyOf  []string
	allOf  []string
}

func (r rule) match(lower string) bool {
	for _, kw := range r.anyOf {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if len(r.allOf) == 0 {
		return false
	}
	for _, kw := range r.allOf {
		if !strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// rules is evaluated in order; first match wins.
var rules = []rule{
	{intent: DelayInquiry, anyOf: []string{"where is my driver", "driver is late", "driver delay"}},
	{intent: StatusQuery, anyOf: []string{"status", "order"}},
	{intent: AddressChange, allOf: []string{"change", "address"}},
}

// Classify returns the intent of text across the whole table.
func Classify(text string) Intent {
	return classify(strings.ToLower(text), rules)
}

// ReplyBranch picks the canned reply for a plain chat message. The delay
// rule is skipped: delay inquiries never reach the reply workflow through the
// front door, and a direct call keeps its historical branch selection.
func ReplyBranch(text string) Intent {
	return classify(strings.ToLower(text), rules[1:])
}

func classify(lower string, table []rule) Intent {
	for _, r := range table {
		if r.match(lower) {
			return r.intent
		}
	}
	return General
}
