package store

import (
	"strings"
	"time"
)

// MessageFilter reports whether a message matches. A nil MessageFilter
// matches everything.
type MessageFilter func(*Message) bool

// Match applies f, treating nil as match-all.
func (f MessageFilter) Match(m *Message) bool {
	return f == nil || f(m)
}

// WorkflowFilter parses a workflow filter expression:
//
//	ABC      exact match
//	!ABC     not equal
//	ABC*     begins with
//	!ABC*    does not begin with
//	*ABC*    contains
//	!*ABC*   does not contain
//
// An empty or blank expression returns nil.
func WorkflowFilter(expr string) MessageFilter {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}

	negate := strings.HasPrefix(expr, "!")
	if negate {
		expr = expr[1:]
	}

	contains := strings.HasPrefix(expr, "*")
	if contains {
		// *x* drops the first and last characters
		if len(expr) >= 2 {
			expr = expr[1 : len(expr)-1]
		} else {
			expr = ""
		}
	}

	beginsWith := strings.HasSuffix(expr, "*")
	if beginsWith {
		expr = expr[:len(expr)-1]
	}

	var match func(string) bool
	switch {
	case beginsWith:
		match = func(id string) bool { return strings.HasPrefix(id, expr) }
	case contains:
		match = func(id string) bool { return strings.Contains(id, expr) }
	default:
		match = func(id string) bool { return id == expr }
	}

	if negate {
		return func(m *Message) bool { return !match(m.WorkflowID) }
	}
	return func(m *Message) bool { return match(m.WorkflowID) }
}

// CreatedAfter matches messages created strictly after t.
func CreatedAfter(t time.Time) MessageFilter {
	return func(m *Message) bool { return m.CreatedAt.After(t) }
}

// StatusIn matches messages whose current status is one of statuses.
func StatusIn(statuses ...Status) MessageFilter {
	return func(m *Message) bool {
		current := m.CurrentStatus()
		for _, s := range statuses {
			if current == s {
				return true
			}
		}
		return false
	}
}

// All matches when every non-nil filter matches.
func All(filters ...MessageFilter) MessageFilter {
	return func(m *Message) bool {
		for _, f := range filters {
			if !f.Match(m) {
				return false
			}
		}
		return true
	}
}

// Apply returns the messages matching f, preserving order.
func Apply(msgs []*Message, f MessageFilter) []*Message {
	if f == nil {
		return msgs
	}
	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		if f(m) {
			out = append(out, m)
		}
	}
	return out
}
