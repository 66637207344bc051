// Package session drives one user at a time through a template's
// entries. The manager owns every live session; inputs for a user are
// applied under the manager lock so a session can never be observed in
// a half-applied state. All transport sends happen outside the lock,
// from the outcomes returned here.
package session

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"formbot/model"
)

// Prompt is a message the caller should deliver to the user, with
// optional quick-reply buttons.
type Prompt struct {
	Text    string
	Buttons []string
	// Skippable adds the skip action to the rendered keyboard.
	Skippable bool
}

// Completion is the product of a finished session, handed to the
// consensus engine by the caller.
type Completion struct {
	UserID        int64
	TemplateIndex int
	Answers       []model.Answer
}

// Outcome reports what a session operation produced. Rejected input is
// user-correctable and never an error: the reply carries the entry's
// incorrect message and the cursor stays put.
type Outcome struct {
	Reply    *Prompt
	Done     *Completion
	Rejected bool
}

// Manager holds the live sessions, one per user.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*model.Session
	catalog  []model.Template
	// lax force-accepts every entry input; set only by the explicit
	// development-mode switch.
	lax bool
	// strict panics on internal invariant violations instead of
	// discarding the session; the development-mode counterpart of lax.
	strict bool
}

// NewManager creates a manager over catalog. lax and strict are the
// development-mode switches for validator bypass and invariant
// propagation.
func NewManager(catalog []model.Template, lax, strict bool) *Manager {
	return &Manager{
		sessions: make(map[int64]*model.Session),
		catalog:  catalog,
		lax:      lax,
		strict:   strict,
	}
}

// Active reports whether userID currently has a live session.
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Choose starts a session on template idx, replacing any in-progress
// session for the user (last writer wins; partial answers are
// discarded). The returned prompt asks the first entry.
func (m *Manager) Choose(userID int64, idx int, snap model.Settings) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx < 0 || idx >= len(m.catalog) {
		return Outcome{}, fmt.Errorf("%w: %d", model.ErrUnknownTemplate, idx)
	}
	if !snap.TemplateActive(idx) {
		return Outcome{}, fmt.Errorf("%w: %d", model.ErrTemplateInactive, idx)
	}
	if old, ok := m.sessions[userID]; ok {
		log.Debug().Int64("user", userID).Int("template", old.TemplateIndex).Msg("replacing in-progress session")
	}
	s := &model.Session{
		UserID:        userID,
		TemplateIndex: idx,
		State:         model.StateAwaitingEntry,
	}
	m.sessions[userID] = s
	return Outcome{Reply: m.prompt(s)}, nil
}

// Input applies one inbound event to the user's session. Rejected
// input keeps the cursor in place and replies with the entry's
// incorrect message. A cancel signal ends the session without a
// completion.
func (m *Manager) Input(userID int64, in model.Input) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Outcome{}, model.ErrNoSession
	}
	if in.Kind == model.InputCancel {
		s.State = model.StateCancelled
		delete(m.sessions, userID)
		return Outcome{Reply: &Prompt{Text: "Operation canceled."}}, nil
	}

	t := m.catalog[s.TemplateIndex]
	if err := m.check(s, t); err != nil {
		delete(m.sessions, userID)
		return Outcome{Reply: &Prompt{Text: "Something went wrong, please start over with /forms."}}, err
	}

	entry := t.Entries[s.Cursor]
	ans, ok := entry.Accept(in, m.lax)
	if !ok {
		return Outcome{Reply: &Prompt{Text: entry.Incorrect}, Rejected: true}, nil
	}

	s.Answers = append(s.Answers, ans)
	s.Cursor++
	if s.Cursor < len(t.Entries) {
		return Outcome{Reply: m.prompt(s)}, nil
	}

	s.State = model.StateCompleted
	delete(m.sessions, userID)
	return Outcome{
		Reply: &Prompt{Text: t.Complete},
		Done: &Completion{
			UserID:        userID,
			TemplateIndex: s.TemplateIndex,
			Answers:       s.Answers,
		},
	}, nil
}

// Cancel drops the user's session, if any.
func (m *Manager) Cancel(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[userID]; !ok {
		return false
	}
	delete(m.sessions, userID)
	return true
}

// check enforces the session invariant. Violations are isolated to the
// offending session unless strict mode propagates them.
func (m *Manager) check(s *model.Session, t model.Template) error {
	if len(s.Answers) == s.Cursor && s.Cursor < len(t.Entries) {
		return nil
	}
	err := fmt.Errorf("session invariant violated: user=%d cursor=%d answers=%d entries=%d",
		s.UserID, s.Cursor, len(s.Answers), len(t.Entries))
	if m.strict {
		panic(err)
	}
	log.Error().Err(err).Msg("discarding corrupt session")
	return err
}

// prompt renders the current entry. Callers hold the lock.
func (m *Manager) prompt(s *model.Session) *Prompt {
	entry := m.catalog[s.TemplateIndex].Entries[s.Cursor]
	text := entry.Title
	if entry.Description != "" {
		text += "\n\n" + entry.Description
	}
	return &Prompt{
		Text:      text,
		Buttons:   entry.Options,
		Skippable: entry.Skippable,
	}
}
