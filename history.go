package folio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrHistoryNotFound is returned for an unknown history id.
var ErrHistoryNotFound = errors.New("history not found")

// Reality is the name of the real log when comparing histories.
const Reality = "reality"

// HistoryStatus is the life cycle status of an alternate history.
const HistoryStatus = "active"

// History is the metadata of an alternate history.
type History struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ModifiedAt    time.Time     `json:"modified_at"`
	Modifications Modifications `json:"modifications"`
	EventCount    int           `json:"event_count"`
	Status        string        `json:"status"`
}

// Histories manages the alternate histories of a real log. Each history is
// a copy of the log, rewritten by its modifications, stored as <id>.jsonl
// with its metadata in <id>.json. The real log is only ever read.
type Histories struct {
	dir   string
	real  *Store
	start StartingState
	log   zerolog.Logger
}

// NewHistories returns the histories of real stored in dir.
func NewHistories(dir string, real *Store, start StartingState) *Histories {
	return &Histories{
		dir:   dir,
		real:  real,
		start: start.Clone(),
		log:   real.log.With().Str("component", "histories").Logger(),
	}
}

func (h *Histories) logPath(id string) string  { return filepath.Join(h.dir, id+".jsonl") }
func (h *Histories) metaPath(id string) string { return filepath.Join(h.dir, id+".json") }

func isReality(id string) bool { return id == "" || strings.EqualFold(id, Reality) }

// validID reports whether id names a file of the histories directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Create copies the real log, applies mods in order and records the new
// history.
func (h *Histories) Create(name, description string, mods ...Modification) (History, error) {
	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return History{}, fmt.Errorf("could not create histories directory: %w", err)
	}
	now := h.real.clock().UTC()
	hist := History{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		ModifiedAt:  now,
		Status:      HistoryStatus,
	}
	if err := h.real.CloneTo(h.logPath(hist.ID)); err != nil {
		return History{}, fmt.Errorf("cannot clone event log: %w", err)
	}
	hist, err := h.modify(hist, mods)
	if err != nil {
		os.Remove(h.logPath(hist.ID))
		return History{}, err
	}
	h.log.Info().Str("history", hist.ID).Str("name", name).Int("modifications", len(mods)).Int("events", hist.EventCount).Msg("history created")
	return hist, nil
}

// Extend applies more modifications to an existing history.
func (h *Histories) Extend(id string, mods ...Modification) (History, error) {
	hist, err := h.Get(id)
	if err != nil {
		return History{}, err
	}
	hist.ModifiedAt = h.real.clock().UTC()
	hist, err = h.modify(hist, mods)
	if err != nil {
		return History{}, err
	}
	h.log.Info().Str("history", id).Int("modifications", len(mods)).Msg("history extended")
	return hist, nil
}

func (h *Histories) modify(hist History, mods []Modification) (History, error) {
	s, err := h.open(hist.ID)
	if err != nil {
		return hist, err
	}
	unlock, err := s.lock(true)
	if err != nil {
		return hist, err
	}
	defer unlock()
	events, err := s.load()
	if err != nil {
		return hist, err
	}
	if len(mods) > 0 {
		events = ApplyModifications(events, mods...)
		if err := s.rewrite(events); err != nil {
			return hist, err
		}
	}
	hist.Modifications = append(slices.Clone(hist.Modifications), mods...)
	hist.EventCount = len(events)
	return hist, h.save(hist)
}

func (h *Histories) save(hist History) error {
	b, err := json.MarshalIndent(hist, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode history %s: %w", hist.ID, err)
	}
	return writeFileAtomic(h.metaPath(hist.ID), func(f *os.File) error {
		_, err := f.Write(append(b, '\n'))
		return err
	})
}

// Get returns the metadata of a history.
func (h *Histories) Get(id string) (History, error) {
	if !validID(id) {
		return History{}, fmt.Errorf("%w: %q", ErrHistoryNotFound, id)
	}
	b, err := os.ReadFile(h.metaPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return History{}, fmt.Errorf("%w: %q", ErrHistoryNotFound, id)
	}
	if err != nil {
		return History{}, fmt.Errorf("cannot read history %q: %w", id, err)
	}
	var hist History
	if err := json.Unmarshal(b, &hist); err != nil {
		return History{}, fmt.Errorf("invalid history %q: %w", id, err)
	}
	// the file name is the id, whatever the metadata says.
	hist.ID = id
	return hist, nil
}

// List returns every history, oldest first.
func (h *Histories) List() ([]History, error) {
	matches, err := filepath.Glob(filepath.Join(h.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var list []History
	for _, m := range matches {
		hist, err := h.Get(strings.TrimSuffix(filepath.Base(m), ".json"))
		if err != nil {
			return nil, err
		}
		list = append(list, hist)
	}
	slices.SortFunc(list, func(a, b History) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return list, nil
}

// Delete removes a history. It returns false if there is no such history.
func (h *Histories) Delete(id string) (bool, error) {
	if _, err := h.Get(id); errors.Is(err, ErrHistoryNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	for _, p := range []string{h.logPath(id), h.logPath(id) + ".lock", h.metaPath(id)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("cannot delete history %q: %w", id, err)
		}
	}
	h.log.Info().Str("history", id).Msg("history deleted")
	return true, nil
}

func (h *Histories) open(id string) (*Store, error) {
	return Open(h.logPath(id), WithLogger(h.log), WithClock(h.real.clock))
}

// Store returns the log of a history. "" and "reality" name the real log.
func (h *Histories) Store(id string) (*Store, error) {
	if isReality(id) {
		return h.real, nil
	}
	if _, err := h.Get(id); err != nil {
		return nil, err
	}
	return h.open(id)
}

// Events returns the events of a history in fold order.
func (h *Histories) Events(id string) ([]Event, error) {
	s, err := h.Store(id)
	if err != nil {
		return nil, err
	}
	return s.Events()
}

// Reconstruct folds the events of a history over the real starting state.
func (h *Histories) Reconstruct(id string, opts ...ReplayOption) (*State, error) {
	events, err := h.Events(id)
	if err != nil {
		return nil, err
	}
	return Reconstruct(h.start, events, opts...), nil
}

// SnapshotAt returns the state of a history after the events whose id is at
// most eventID.
func (h *Histories) SnapshotAt(id string, eventID int64, opts ...ReplayOption) (*State, error) {
	events, err := h.Events(id)
	if err != nil {
		return nil, err
	}
	events = slices.DeleteFunc(events, func(e Event) bool { return e.ID > eventID })
	return Reconstruct(h.start, events, opts...), nil
}
