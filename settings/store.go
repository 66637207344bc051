// Package settings owns the mutable bot configuration: reviewer
// rosters, channel binding, quorum thresholds and the active-template
// partition. The core reads it through per-operation snapshots; every
// mutation goes through the store and is written back to the settings
// file immediately.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"formbot/model"
)

var (
	ErrLastAdmin    = errors.New("settings: cannot remove the last admin")
	ErrBadThreshold = errors.New("settings: threshold out of range")
	ErrUnknownIndex = errors.New("settings: template index out of range")
)

// Store guards the settings behind a RWMutex and persists every
// change. Reads hand out value copies, so callers can never observe a
// half-applied mutation.
type Store struct {
	mu       sync.RWMutex
	s        model.Settings
	path     string
	catalogN int
}

// New creates a store seeded with admins. If path exists its contents
// override the seed; admins passed here are merged in so the bot is
// never locked out by a stale file.
func New(path string, admins []int64, catalogSize int) (*Store, error) {
	if len(admins) == 0 {
		return nil, errors.New("settings: at least one admin is required")
	}
	st := &Store{
		path:     path,
		catalogN: catalogSize,
		s: model.Settings{
			Admins:       admins,
			MinApproval:  1,
			MinRejection: 1,
		},
	}
	if data, err := os.ReadFile(path); err == nil {
		var loaded model.Settings
		if err := json.Unmarshal(data, &loaded); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("settings file malformed, starting from defaults")
		} else {
			st.s = loaded
			for _, id := range admins {
				if !st.s.IsAdmin(id) {
					st.s.Admins = append(st.s.Admins, id)
				}
			}
			if st.s.MinApproval < 1 {
				st.s.MinApproval = 1
			}
			if st.s.MinRejection < 1 {
				st.s.MinRejection = 1
			}
		}
	}
	st.pruneInactive()
	return st, nil
}

// Snapshot returns a copy of the current settings. Slices are cloned;
// the caller owns the result.
func (st *Store) Snapshot() model.Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s := st.s
	s.Admins = append([]int64(nil), st.s.Admins...)
	s.Moderators = append([]int64(nil), st.s.Moderators...)
	s.ActiveTemplates = append([]int(nil), st.s.ActiveTemplates...)
	s.InactiveTemplates = append([]int(nil), st.s.InactiveTemplates...)
	return s
}

// BindChannel sets the publication channel.
func (st *Store) BindChannel(channel int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Channel = channel
	return st.save()
}

// SetQuorum sets both thresholds. Each must be at least 1 and no
// larger than the current eligible voter count.
func (st *Store) SetQuorum(minApproval, minRejection int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	voters := len(st.s.Reviewers())
	if minApproval < 1 || minApproval > voters {
		return fmt.Errorf("%w: min_approval=%d voters=%d", ErrBadThreshold, minApproval, voters)
	}
	if minRejection < 1 || minRejection > voters {
		return fmt.Errorf("%w: min_rejection=%d voters=%d", ErrBadThreshold, minRejection, voters)
	}
	st.s.MinApproval = minApproval
	st.s.MinRejection = minRejection
	return st.save()
}

// AddAdmin grants full rights to id.
func (st *Store) AddAdmin(id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.IsAdmin(id) {
		return nil
	}
	st.s.Admins = append(st.s.Admins, id)
	return st.save()
}

// RemoveAdmin revokes full rights from id. The last admin cannot be
// removed, so the bot is never left without one.
func (st *Store) RemoveAdmin(id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, a := range st.s.Admins {
		if a == id {
			if len(st.s.Admins) == 1 {
				return ErrLastAdmin
			}
			st.s.Admins = append(st.s.Admins[:i], st.s.Admins[i+1:]...)
			return st.save()
		}
	}
	return nil
}

// AddModerator grants vote-only rights to id.
func (st *Store) AddModerator(id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, m := range st.s.Moderators {
		if m == id {
			return nil
		}
	}
	st.s.Moderators = append(st.s.Moderators, id)
	return st.save()
}

// RemoveModerator revokes vote-only rights from id.
func (st *Store) RemoveModerator(id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, m := range st.s.Moderators {
		if m == id {
			st.s.Moderators = append(st.s.Moderators[:i], st.s.Moderators[i+1:]...)
			return st.save()
		}
	}
	return nil
}

// ToggleTemplate flips catalog index idx between active and inactive.
// It returns the new active state.
func (st *Store) ToggleTemplate(idx int) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if idx < 0 || idx >= st.catalogN {
		return false, fmt.Errorf("%w: %d", ErrUnknownIndex, idx)
	}
	for i, v := range st.s.InactiveTemplates {
		if v == idx {
			st.s.InactiveTemplates = append(st.s.InactiveTemplates[:i], st.s.InactiveTemplates[i+1:]...)
			st.rebuildActive()
			return true, st.save()
		}
	}
	st.s.InactiveTemplates = append(st.s.InactiveTemplates, idx)
	st.rebuildActive()
	return false, st.save()
}

// rebuildActive keeps active_templates and inactive_templates a
// partition of the catalog indices. Callers hold the write lock.
func (st *Store) rebuildActive() {
	st.s.ActiveTemplates = st.s.ActiveTemplates[:0]
	for i := 0; i < st.catalogN; i++ {
		if st.s.TemplateActive(i) {
			st.s.ActiveTemplates = append(st.s.ActiveTemplates, i)
		}
	}
}

// pruneInactive drops inactive indices that no longer exist in the
// catalog, then rebuilds the partition.
func (st *Store) pruneInactive() {
	kept := st.s.InactiveTemplates[:0]
	for _, v := range st.s.InactiveTemplates {
		if v >= 0 && v < st.catalogN {
			kept = append(kept, v)
		}
	}
	st.s.InactiveTemplates = kept
	st.rebuildActive()
}

// save writes the settings file. Callers hold the write lock.
func (st *Store) save() error {
	if st.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(st.s, "", "    ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", st.path, err)
	}
	return nil
}
