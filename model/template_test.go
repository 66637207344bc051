package model

import (
	"errors"
	"testing"
)

func validTemplate() Template {
	return Template{
		Title:    "T",
		Complete: "done",
		ToEnd:    "end",
		Entries: []Entry{
			{Mode: ModeText, Title: "Q", Incorrect: "no"},
		},
	}
}

func TestTemplateValidate(t *testing.T) {
	if err := validTemplate().Validate(); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Template)
		want   error
	}{
		{"missing title", func(tpl *Template) { tpl.Title = "" }, ErrMissingField},
		{"missing complete", func(tpl *Template) { tpl.Complete = "" }, ErrMissingField},
		{"missing toend", func(tpl *Template) { tpl.ToEnd = "" }, ErrMissingField},
		{"no entries", func(tpl *Template) { tpl.Entries = nil }, ErrMissingField},
		{"entry missing incorrect", func(tpl *Template) { tpl.Entries[0].Incorrect = "" }, ErrMissingField},
		{"unknown mode", func(tpl *Template) { tpl.Entries[0].Mode = "riddle" }, ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := validTemplate()
			tt.mutate(&tpl)
			if err := tpl.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOneOfEntryValidate(t *testing.T) {
	e := Entry{Mode: ModeOneOf, Title: "Q", Incorrect: "no", Options: []string{"a", "b"}}
	if err := e.Validate(); err != nil {
		t.Fatalf("valid oneof rejected: %v", err)
	}

	e.Options = nil
	if err := e.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("oneof without options: %v, want ErrMissingField", err)
	}

	e.Options = []string{"a", "a"}
	if err := e.Validate(); err == nil {
		t.Error("duplicate options accepted")
	}

	e.Options = []string{"a", ""}
	if err := e.Validate(); err == nil {
		t.Error("empty option accepted")
	}
}

func TestSettingsRoster(t *testing.T) {
	s := Settings{Admins: []int64{1, 2}, Moderators: []int64{2, 3}}

	if !s.IsAdmin(1) || s.IsAdmin(3) {
		t.Error("admin check wrong")
	}
	for _, id := range []int64{1, 2, 3} {
		if !s.IsReviewer(id) {
			t.Errorf("reviewer %d not recognized", id)
		}
	}
	if s.IsReviewer(4) {
		t.Error("outsider recognized as reviewer")
	}

	// Overlapping rosters do not double-count a voter.
	if got := len(s.Reviewers()); got != 3 {
		t.Errorf("Reviewers() = %d, want 3", got)
	}
}

func TestSuggestionCounts(t *testing.T) {
	sug := Suggestion{Votes: map[int64]Decision{1: Approve, 2: Reject, 3: Approve}}
	approve, reject := sug.Counts()
	if approve != 2 || reject != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", approve, reject)
	}
}
