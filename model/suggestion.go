package model

// Decision is a single reviewer's vote.
type Decision int

const (
	Approve Decision = iota
	Reject
)

// Status is the lifecycle state of a suggestion. Once it leaves
// Pending it is terminal.
type Status int

const (
	StatusPending Status = iota
	StatusPublished
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPublished:
		return "published"
	case StatusRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Suggestion is a completed answer set awaiting reviewer consensus.
// Answers are copied from the session at creation and immutable
// afterwards. Votes holds at most one decision per reviewer; a repeat
// vote replaces the earlier one.
type Suggestion struct {
	ID            string
	AuthorID      int64
	AuthorName    string
	TemplateIndex int
	Answers       []Answer
	Votes         map[int64]Decision
	Status        Status
}

// Counts returns the current approve and reject tallies.
func (s *Suggestion) Counts() (approve, reject int) {
	for _, d := range s.Votes {
		if d == Approve {
			approve++
		} else {
			reject++
		}
	}
	return approve, reject
}
