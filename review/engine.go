// Package review aggregates independent reviewer votes on submitted
// suggestions and resolves each one to a terminal published or
// rejected decision once the configured quorum is met.
//
// The record-vote-then-maybe-resolve sequence runs as one atomic unit
// under a per-suggestion mutex: concurrent reviewers cannot both
// observe sub-quorum state, lose a vote, or resolve twice. Nothing
// here performs transport I/O; callers deliver the notification plan
// returned by each operation after the lock is released.
package review

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"formbot/model"
)

// Notice is one outbound message the caller should deliver.
type Notice struct {
	TargetID int64
	Text     string
	// VoteButtons attaches the approve/reject actions for the given
	// suggestion id.
	VoteButtons string
}

// VoteResult reports the effect of one recorded vote.
type VoteResult struct {
	Status  model.Status
	Approve int
	Reject  int
	// Notices is the post-release delivery plan: author and reviewer
	// notifications for a terminal decision, empty while pending.
	Notices []Notice
	// Publish is the channel post to send when Status is Published.
	Publish *Notice
	// Resolved holds a copy of the suggestion when it just left
	// Pending, for archiving.
	Resolved *model.Suggestion
}

type tracked struct {
	mu  sync.Mutex
	sug *model.Suggestion
}

// Engine owns every pending suggestion.
type Engine struct {
	mu      sync.Mutex
	pending map[string]*tracked
	catalog []model.Template
}

// NewEngine creates an engine over catalog.
func NewEngine(catalog []model.Template) *Engine {
	return &Engine{
		pending: make(map[string]*tracked),
		catalog: catalog,
	}
}

// Submit registers a completed answer set as a pending suggestion and
// returns it along with the reviewer notification plan.
func (e *Engine) Submit(authorID int64, authorName string, templateIndex int, answers []model.Answer, snap model.Settings) (*model.Suggestion, []Notice) {
	sug := &model.Suggestion{
		ID:            uuid.NewString(),
		AuthorID:      authorID,
		AuthorName:    authorName,
		TemplateIndex: templateIndex,
		Answers:       append([]model.Answer(nil), answers...),
		Votes:         make(map[int64]model.Decision),
		Status:        model.StatusPending,
	}
	e.mu.Lock()
	e.pending[sug.ID] = &tracked{sug: sug}
	e.mu.Unlock()

	text := "New suggestion for review:\n\n" + e.Render(sug)
	notices := make([]Notice, 0, len(snap.Reviewers()))
	for _, id := range snap.Reviewers() {
		notices = append(notices, Notice{TargetID: id, Text: text, VoteButtons: sug.ID})
	}
	log.Info().Str("suggestion", sug.ID).Int64("author", authorID).Int("reviewers", len(notices)).Msg("suggestion submitted")
	return sug, notices
}

// Vote records reviewerID's decision on suggestion id and resolves the
// suggestion if a threshold is met. A repeat vote by the same reviewer
// replaces the earlier decision rather than adding to it. Roster and
// thresholds come from snap, read at the moment of the vote, so
// configuration changes apply to in-flight suggestions.
//
// Approval is checked before rejection on every vote: when one vote
// satisfies both thresholds at once, approval wins.
func (e *Engine) Vote(id string, reviewerID int64, d model.Decision, snap model.Settings) (VoteResult, error) {
	if !snap.IsReviewer(reviewerID) {
		return VoteResult{}, fmt.Errorf("%w: %d", model.ErrNotReviewer, reviewerID)
	}

	e.mu.Lock()
	tr, ok := e.pending[id]
	e.mu.Unlock()
	if !ok {
		// Resolved suggestions leave the pending set; a vote on one is
		// a stale client, not a fault.
		return VoteResult{}, model.ErrAlreadyDecided
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	sug := tr.sug
	if sug.Status != model.StatusPending {
		return VoteResult{}, model.ErrAlreadyDecided
	}

	sug.Votes[reviewerID] = d
	approve, reject := sug.Counts()
	res := VoteResult{Status: model.StatusPending, Approve: approve, Reject: reject}

	switch {
	case approve >= snap.MinApproval:
		if snap.Channel == 0 {
			// Publication precondition failed: surface the error and
			// keep the suggestion pending so an admin can fix the
			// binding and a later vote retries.
			return res, model.ErrChannelUnbound
		}
		sug.Status = model.StatusPublished
		res.Publish = &Notice{TargetID: snap.Channel, Text: e.Render(sug)}
	case reject >= snap.MinRejection:
		sug.Status = model.StatusRejected
	default:
		return res, nil
	}

	res.Status = sug.Status
	resolved := *sug
	res.Resolved = &resolved
	res.Notices = e.decisionNotices(sug, reviewerID)

	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()

	log.Info().Str("suggestion", id).Str("status", sug.Status.String()).
		Int("approve", approve).Int("reject", reject).Msg("suggestion resolved")
	return res, nil
}

// Pending returns copies of the suggestions still awaiting quorum.
func (e *Engine) Pending() []*model.Suggestion {
	e.mu.Lock()
	trs := make([]*tracked, 0, len(e.pending))
	for _, tr := range e.pending {
		trs = append(trs, tr)
	}
	e.mu.Unlock()

	out := make([]*model.Suggestion, 0, len(trs))
	for _, tr := range trs {
		tr.mu.Lock()
		cp := *tr.sug
		tr.mu.Unlock()
		out = append(out, &cp)
	}
	return out
}

// decisionNotices builds the author and reviewer notifications for a
// just-resolved suggestion. Callers hold the suggestion lock.
func (e *Engine) decisionNotices(sug *model.Suggestion, actor int64) []Notice {
	var authorText string
	if sug.Status == model.StatusPublished {
		authorText = "Your post has been approved and published."
	} else {
		authorText = "Your post has been rejected."
	}
	notices := []Notice{{TargetID: sug.AuthorID, Text: authorText}}

	finalText := fmt.Sprintf("Suggestion %q is now %s.", e.title(sug), sug.Status)
	for id := range sug.Votes {
		if id == actor {
			continue
		}
		notices = append(notices, Notice{TargetID: id, Text: finalText})
	}
	return notices
}

func (e *Engine) title(sug *model.Suggestion) string {
	if sug.TemplateIndex >= 0 && sug.TemplateIndex < len(e.catalog) {
		return e.catalog[sug.TemplateIndex].Title
	}
	return "untitled"
}
