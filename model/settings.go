package model

// Settings is a read-only snapshot of the bot configuration. The
// settings store hands a fresh copy to every session and consensus
// operation; nothing in the core mutates it.
//
// JSON tags match the persisted settings file consumed by the
// backup/restore tooling and must not change.
type Settings struct {
	Admins            []int64 `json:"admins"`
	Moderators        []int64 `json:"moderators,omitempty"`
	Channel           int64   `json:"channel"`
	ActiveTemplates   []int   `json:"active_templates,omitempty"`
	InactiveTemplates []int   `json:"inactive_templates,omitempty"`
	MinApproval       int     `json:"min_approval"`
	MinRejection      int     `json:"min_rejection"`
}

// IsAdmin reports whether id has full administrative rights.
func (s Settings) IsAdmin(id int64) bool {
	for _, a := range s.Admins {
		if a == id {
			return true
		}
	}
	return false
}

// IsReviewer reports whether id may vote on suggestions. A user is a
// reviewer if present in either the admin or the moderator roster.
func (s Settings) IsReviewer(id int64) bool {
	if s.IsAdmin(id) {
		return true
	}
	for _, m := range s.Moderators {
		if m == id {
			return true
		}
	}
	return false
}

// Reviewers returns the eligible voter set, admins first, without
// duplicates.
func (s Settings) Reviewers() []int64 {
	seen := make(map[int64]struct{}, len(s.Admins)+len(s.Moderators))
	out := make([]int64, 0, len(s.Admins)+len(s.Moderators))
	for _, id := range s.Admins {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range s.Moderators {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// TemplateActive reports whether catalog index idx is offered to
// users. Indices are active unless explicitly listed as inactive.
func (s Settings) TemplateActive(idx int) bool {
	for _, i := range s.InactiveTemplates {
		if i == idx {
			return false
		}
	}
	return true
}
