package model

// SessionState is the state of one user's form walk.
type SessionState int

const (
	StateSelectingTemplate SessionState = iota
	StateAwaitingEntry
	StateCompleted
	StateCancelled
)

// Session tracks one user's progress through a template. At most one
// live session exists per user; selecting a new template replaces any
// in-progress one. Sessions are ephemeral and never persisted.
//
// Invariant: len(Answers) == Cursor whenever State is AwaitingEntry or
// Completed.
type Session struct {
	UserID        int64
	TemplateIndex int
	Cursor        int
	Answers       []Answer
	State         SessionState
}
