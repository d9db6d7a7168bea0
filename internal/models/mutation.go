package models

import "time"

// MutationKind is the kind of optimistic operation.
type MutationKind string

const (
	MutationSend   MutationKind = "send"
	MutationDelete MutationKind = "delete"
)

// Outcome is the resolution of a pending mutation.
type Outcome string

const (
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
)

// Mutation is a send or delete awaiting backend confirmation.
// It lives only for the current session.
type Mutation struct {
	ID        string
	Kind      MutationKind
	TargetID  string
	Submitted time.Time
	Outcome   Outcome
}

// Resolved reports whether the backend has answered.
func (m Mutation) Resolved() bool {
	return m.Outcome == OutcomeSucceeded || m.Outcome == OutcomeFailed
}
