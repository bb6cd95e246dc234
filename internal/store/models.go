package store

import "time"

type SubscriptionOutcome string

const (
	OutcomeAccepted SubscriptionOutcome = "accepted"
	OutcomeFailed   SubscriptionOutcome = "failed"
)

// Event is one analytics beacon received from a widget.
type Event struct {
	ID         int64
	Name       string
	SessionID  string
	ProductID  string
	VariantID  string
	Context    string
	Properties map[string]string // Decoded from JSON
	CreatedAt  time.Time
}

// Subscription is one relayed sign-up attempt.
type Subscription struct {
	ID             int64
	ProductID      string
	VariantID      string
	Phone          string // canonical +1 form
	MarketingOptIn bool
	Outcome        SubscriptionOutcome
	Error          string // empty unless Outcome is failed
	CreatedAt      time.Time
}

// EventCount is the number of events recorded under one name.
type EventCount struct {
	Name  string
	Count int
}
