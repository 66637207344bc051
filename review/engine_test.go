package review

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"formbot/model"
)

func testCatalog() []model.Template {
	return []model.Template{{
		Title:    "Suggestion",
		Complete: "done",
		ToEnd:    "Submitted via the suggestion form.",
		Entries: []model.Entry{
			{Mode: model.ModeText, Title: "Title", Incorrect: "no"},
			{Mode: model.ModeURL, Title: "Link", Skippable: true, Incorrect: "no"},
		},
	}}
}

func reviewers(minApprove, minReject int, ids ...int64) model.Settings {
	return model.Settings{
		Admins:       ids,
		Channel:      -100500,
		MinApproval:  minApprove,
		MinRejection: minReject,
	}
}

func submit(t *testing.T, e *Engine, snap model.Settings) *model.Suggestion {
	t.Helper()
	answers := []model.Answer{{Value: "A thing"}, {Skipped: true}}
	sug, notices := e.Submit(42, "author", 0, answers, snap)
	if sug.Status != model.StatusPending {
		t.Fatalf("new suggestion status = %v, want pending", sug.Status)
	}
	if len(notices) != len(snap.Reviewers()) {
		t.Fatalf("notices = %d, want one per reviewer", len(notices))
	}
	return sug
}

func TestVoteIdempotence(t *testing.T) {
	snap := reviewers(2, 2, 1, 2, 3)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	res, err := e.Vote(sug.ID, 1, model.Approve, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approve != 1 {
		t.Fatalf("approve count = %d, want 1", res.Approve)
	}

	// Voting approve twice in a row does not inflate the tally.
	res, err = e.Vote(sug.ID, 1, model.Approve, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approve != 1 || res.Status != model.StatusPending {
		t.Errorf("repeat vote: approve = %d status = %v, want 1 pending", res.Approve, res.Status)
	}
}

func TestVoteReplacement(t *testing.T) {
	snap := reviewers(2, 2, 1, 2, 3)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	if _, err := e.Vote(sug.ID, 1, model.Approve, snap); err != nil {
		t.Fatal(err)
	}
	// Changing one's mind moves the vote, it does not add a second one.
	res, err := e.Vote(sug.ID, 1, model.Reject, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approve != 0 || res.Reject != 1 {
		t.Errorf("after flip: %d approve / %d reject, want 0/1", res.Approve, res.Reject)
	}
}

func TestQuorumScenario(t *testing.T) {
	// 3 voters, 2 to approve, 2 to reject. Reject, Approve, Approve
	// resolves Published exactly on the second approve.
	snap := reviewers(2, 2, 1, 2, 3)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	res, err := e.Vote(sug.ID, 1, model.Reject, snap)
	if err != nil || res.Status != model.StatusPending {
		t.Fatalf("after reject: status = %v err = %v", res.Status, err)
	}
	res, err = e.Vote(sug.ID, 2, model.Approve, snap)
	if err != nil || res.Status != model.StatusPending {
		t.Fatalf("after first approve: status = %v err = %v", res.Status, err)
	}

	res, err = e.Vote(sug.ID, 3, model.Approve, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusPublished {
		t.Fatalf("after second approve: status = %v, want published", res.Status)
	}
	if res.Publish == nil || res.Publish.TargetID != snap.Channel {
		t.Errorf("publish plan = %+v, want channel post", res.Publish)
	}
	// Author notified, plus the other two voters.
	if len(res.Notices) != 3 {
		t.Errorf("notices = %d, want author + 2 voters", len(res.Notices))
	}
	if res.Notices[0].TargetID != 42 {
		t.Errorf("first notice target = %d, want author", res.Notices[0].TargetID)
	}

	// A fourth vote afterwards is a no-op.
	if _, err := e.Vote(sug.ID, 1, model.Approve, snap); !errors.Is(err, model.ErrAlreadyDecided) {
		t.Errorf("vote after resolution: err = %v, want ErrAlreadyDecided", err)
	}
}

func TestRejectionQuorum(t *testing.T) {
	snap := reviewers(2, 2, 1, 2, 3)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	if _, err := e.Vote(sug.ID, 1, model.Reject, snap); err != nil {
		t.Fatal(err)
	}
	res, err := e.Vote(sug.ID, 2, model.Reject, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusRejected {
		t.Fatalf("status = %v, want rejected", res.Status)
	}
	if res.Publish != nil {
		t.Error("rejected suggestion carries a publish plan")
	}
}

func TestTieBreakApprovalFirst(t *testing.T) {
	// With both thresholds at 1, a single approve satisfies both
	// checks at once; approval is checked first and wins.
	snap := reviewers(1, 1, 1)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	res, err := e.Vote(sug.ID, 1, model.Approve, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusPublished {
		t.Errorf("status = %v, want published (approval checked first)", res.Status)
	}
}

func TestUnboundChannelKeepsPending(t *testing.T) {
	snap := reviewers(1, 1, 1, 2)
	snap.Channel = 0
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	_, err := e.Vote(sug.ID, 1, model.Approve, snap)
	if !errors.Is(err, model.ErrChannelUnbound) {
		t.Fatalf("err = %v, want ErrChannelUnbound", err)
	}
	if got := len(e.Pending()); got != 1 {
		t.Fatalf("pending = %d, want suggestion retained for retry", got)
	}

	// The vote itself was recorded; once an admin binds the channel a
	// later vote resolves.
	snap.Channel = -100500
	res, err := e.Vote(sug.ID, 2, model.Approve, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusPublished {
		t.Errorf("status after binding = %v, want published", res.Status)
	}
}

func TestNonReviewerCannotVote(t *testing.T) {
	snap := reviewers(1, 1, 1)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	if _, err := e.Vote(sug.ID, 777, model.Approve, snap); !errors.Is(err, model.ErrNotReviewer) {
		t.Errorf("err = %v, want ErrNotReviewer", err)
	}
}

func TestModeratorsAreEligible(t *testing.T) {
	snap := model.Settings{
		Admins:       []int64{1},
		Moderators:   []int64{2},
		Channel:      -1,
		MinApproval:  2,
		MinRejection: 2,
	}
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	if _, err := e.Vote(sug.ID, 2, model.Approve, snap); err != nil {
		t.Fatalf("moderator vote failed: %v", err)
	}
	res, err := e.Vote(sug.ID, 1, model.Approve, snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusPublished {
		t.Errorf("status = %v, want published", res.Status)
	}
}

func TestThresholdsReadAtVoteTime(t *testing.T) {
	// Quorum changes apply to in-flight suggestions because the
	// snapshot is taken per vote, not per suggestion.
	e := NewEngine(testCatalog())
	before := reviewers(3, 3, 1, 2, 3)
	sug := submit(t, e, before)

	if _, err := e.Vote(sug.ID, 1, model.Approve, before); err != nil {
		t.Fatal(err)
	}

	after := reviewers(2, 2, 1, 2, 3)
	res, err := e.Vote(sug.ID, 2, model.Approve, after)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusPublished {
		t.Errorf("status = %v, want published under lowered quorum", res.Status)
	}
}

func TestConcurrentVotesResolveOnce(t *testing.T) {
	snap := reviewers(2, 2, 1, 2, 3, 4, 5, 6, 7, 8)
	e := NewEngine(testCatalog())
	sug := submit(t, e, snap)

	var wg sync.WaitGroup
	published := make(chan VoteResult, len(snap.Admins))
	for _, id := range snap.Admins {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			res, err := e.Vote(sug.ID, id, model.Approve, snap)
			if err == nil && res.Status == model.StatusPublished {
				published <- res
			}
		}(id)
	}
	wg.Wait()
	close(published)

	var resolutions int
	for range published {
		resolutions++
	}
	if resolutions != 1 {
		t.Fatalf("resolved %d times, want exactly once", resolutions)
	}
	if len(e.Pending()) != 0 {
		t.Error("resolved suggestion still pending")
	}
}

func TestRenderIncludesClosingTextAndAuthor(t *testing.T) {
	e := NewEngine(testCatalog())
	sug := &model.Suggestion{
		AuthorName:    "author",
		TemplateIndex: 0,
		Answers:       []model.Answer{{Value: "A thing"}, {Skipped: true}},
	}
	text := e.Render(sug)

	for _, want := range []string{"Suggestion", "Title: A thing", "Submitted via the suggestion form.", "@author"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Link:") {
		t.Errorf("skipped entry rendered:\n%s", text)
	}
}
