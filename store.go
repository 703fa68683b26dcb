package folio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sys/unix"
)

// Store is the only gateway to an event log file.
//
// Writers hold an exclusive lock, readers a shared one, both in process and
// across processes (flock on the ".lock" file next to the log). Locks are
// blocking and have no timeout.
type Store struct {
	path  string
	mu    sync.RWMutex
	log   zerolog.Logger
	clock func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger the store reports its writes to.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = l.With().Str("component", "store").Logger() }
}

// WithClock sets the clock used to timestamp appended events.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// Open returns the store of the log at path. The file is created empty if it
// does not exist.
func Open(path string, opts ...StoreOption) (*Store, error) {
	s := &Store{path: path, log: zerolog.Nop(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create directory for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot open event log %q: %w", path, err)
	}
	return s, f.Close()
}

// Path returns the path of the log file.
func (s *Store) Path() string { return s.path }

// lock acquires the in-process and the file lock, and returns the function
// releasing both.
func (s *Store) lock(exclusive bool) (func(), error) {
	if exclusive {
		s.mu.Lock()
	} else {
		s.mu.RLock()
	}
	unlockMu := s.mu.RUnlock
	how := unix.LOCK_SH
	if exclusive {
		unlockMu = s.mu.Unlock
		how = unix.LOCK_EX
	}

	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		unlockMu()
		return nil, fmt.Errorf("cannot open lock file: %w", err)
	}
	for {
		err = unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		unlockMu()
		return nil, fmt.Errorf("cannot lock %q: %w", s.path, err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		unlockMu()
	}, nil
}

// load reads the whole log in file order. The caller holds a lock.
func (s *Store) load() ([]Event, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open event log: %w", err)
	}
	defer f.Close()
	events, err := DecodeEvents(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read event log %q: %w", s.path, err)
	}
	return events, nil
}

// rewrite replaces the whole log atomically. The caller holds the exclusive
// lock.
func (s *Store) rewrite(events []Event) error {
	return writeFileAtomic(s.path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		if err := EncodeEvents(w, events); err != nil {
			return err
		}
		return w.Flush()
	})
}

// writeFileAtomic writes a temporary file next to path with fn, syncs it
// and renames it over path.
func writeFileAtomic(path string, fn func(*os.File) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temporary file for %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = fn(f); err != nil {
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	if err = f.Chmod(0644); err != nil {
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("cannot sync %q: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("cannot replace %q: %w", path, err)
	}
	return nil
}

func maxID(events []Event) int64 {
	var id int64
	for _, e := range events {
		id = max(id, e.ID)
	}
	return id
}

// Append appends one event and returns its id: one more than the largest id
// in the log, 1 for an empty log. Its timestamp is the store clock unless the
// draft carries one. Nothing else is validated.
func (s *Store) Append(d Draft) (int64, error) {
	ids, err := s.AppendBatch([]Draft{d})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AppendBatch appends drafts in order, under a single lock and a single
// durable write.
func (s *Store) AppendBatch(drafts []Draft) ([]int64, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	unlock, err := s.lock(true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return nil, err
	}
	index := newPositionIndex(events)
	next := maxID(events)
	now := s.clock().UTC()

	var buf bytes.Buffer
	ids := make([]int64, 0, len(drafts))
	added := make([]Event, 0, len(drafts))
	for _, d := range drafts {
		next++
		ts := d.Timestamp
		if ts.IsZero() {
			ts = now
		}
		e := d.event(next, ts)
		index.stamp(&e)
		if err := EncodeEvent(&buf, e); err != nil {
			return nil, err
		}
		ids = append(ids, e.ID)
		added = append(added, e)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot open event log for append: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot append to event log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot sync event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("cannot close event log: %w", err)
	}
	for _, e := range added {
		s.log.Debug().Int64("event_id", e.ID).Str("event_type", e.Type.String()).Str("ticker", e.Ticker()).Msg("event appended")
	}
	return ids, nil
}

// Patch lists the fields Update overwrites. Nil fields are left as they are.
type Patch struct {
	Timestamp   *time.Time
	Type        *EventType
	Data        Payload
	Reason      *Reason
	Notes       *string
	Tags        *[]string
	AffectsCash *bool
	CashDelta   *decimal.Decimal
	// RecomputeCash derives AffectsCash and CashDelta from the cash rule
	// table once the other fields are applied.
	RecomputeCash bool
}

func (p Patch) apply(e Event) Event {
	if p.Timestamp != nil {
		e.Timestamp = *p.Timestamp
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Data != nil {
		e.Data = normPayload(p.Data).clone()
		e.Extra = nil
	}
	if p.Reason != nil {
		r := *p.Reason
		e.Reason = &r
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Tags != nil {
		e.Tags = slices.Clone(*p.Tags)
	}
	if p.AffectsCash != nil {
		e.AffectsCash = *p.AffectsCash
	}
	if p.CashDelta != nil {
		e.CashDelta = *p.CashDelta
	}
	if p.RecomputeCash {
		e = e.Normalized()
	}
	return e
}

// Update applies p to the event with id. It returns false if there is no
// such event.
func (s *Store) Update(id int64, p Patch) (bool, error) {
	unlock, err := s.lock(true)
	if err != nil {
		return false, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return false, err
	}
	i := slices.IndexFunc(events, func(e Event) bool { return e.ID == id })
	if i < 0 {
		return false, nil
	}
	events[i] = p.apply(events[i])
	if err := s.rewrite(events); err != nil {
		return false, err
	}
	s.log.Info().Int64("event_id", id).Str("event_type", events[i].Type.String()).Msg("event updated")
	return true, nil
}

// Delete removes the event with id from the log. It returns false if there
// is no such event.
func (s *Store) Delete(id int64) (bool, error) {
	unlock, err := s.lock(true)
	if err != nil {
		return false, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return false, err
	}
	n := len(events)
	events = slices.DeleteFunc(events, func(e Event) bool { return e.ID == id })
	if len(events) == n {
		return false, nil
	}
	if err := s.rewrite(events); err != nil {
		return false, err
	}
	s.log.Info().Int64("event_id", id).Msg("event deleted")
	return true, nil
}

// Get returns the event with id.
func (s *Store) Get(id int64) (Event, bool, error) {
	unlock, err := s.lock(false)
	if err != nil {
		return Event{}, false, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return Event{}, false, err
	}
	for _, e := range events {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Event{}, false, nil
}

// Events returns every event in fold order: timestamp ascending, ties
// broken by id.
func (s *Store) Events() ([]Event, error) {
	unlock, err := s.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return nil, err
	}
	SortEvents(events)
	return events, nil
}

// SortEvents sorts events in fold order.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmpInt(a.ID, b.ID)
	})
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Filter selects events in Read. Zero fields select everything.
type Filter struct {
	Type EventType
	// Ticker matches the payload ticker as a case-insensitive substring.
	Ticker string
	// Limit caps the number of events returned.
	Limit int
	// Where is a jsonpath filter predicate evaluated on the JSON record, for
	// instance `@.data.shares > 10`.
	Where string
}

// Read returns the events selected by f, largest id first.
func (s *Store) Read(f Filter) ([]Event, error) {
	unlock, err := s.lock(false)
	if err != nil {
		return nil, err
	}
	events, err := s.load()
	unlock()
	if err != nil {
		return nil, err
	}

	var where gval.Evaluable
	if f.Where != "" {
		if where, err = compileWhere(f.Where); err != nil {
			return nil, err
		}
	}

	slices.SortFunc(events, func(a, b Event) int { return cmpInt(b.ID, a.ID) })
	ticker := strings.ToUpper(strings.TrimSpace(f.Ticker))
	var selected []Event
	for _, e := range events {
		if f.Limit > 0 && len(selected) >= f.Limit {
			break
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if ticker != "" && !strings.Contains(e.Ticker(), ticker) {
			continue
		}
		if where != nil {
			ok, err := matchWhere(where, e)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		selected = append(selected, e)
	}
	return selected, nil
}

// whereLanguage is jsonpath with the full gval operator set, so that filters
// can compare numbers.
var whereLanguage = gval.Full(jsonpath.Language())

func compileWhere(where string) (gval.Evaluable, error) {
	eval, err := whereLanguage.NewEvaluable("$[?(" + where + ")]")
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", where, err)
	}
	return eval, nil
}

// matchWhere evaluates a compiled filter on the JSON record of e.
func matchWhere(where gval.Evaluable, e Event) (bool, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	var record any
	if err := json.Unmarshal(b, &record); err != nil {
		return false, err
	}
	v, err := where(context.Background(), []any{record})
	if err != nil {
		return false, fmt.Errorf("cannot filter event %d: %w", e.ID, err)
	}
	matched, _ := v.([]any)
	return len(matched) > 0, nil
}

// CloneTo copies the log verbatim to path.
func (s *Store) CloneTo(path string) error {
	unlock, err := s.lock(false)
	if err != nil {
		return err
	}
	defer unlock()

	b, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot read event log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create directory for %q: %w", path, err)
	}
	return writeFileAtomic(path, func(f *os.File) error {
		_, err := f.Write(b)
		return err
	})
}

// Format rewrites the log in fold order with every record in its canonical
// encoding, and returns the number of events written. Ids are unchanged.
func (s *Store) Format() (int, error) {
	unlock, err := s.lock(true)
	if err != nil {
		return 0, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return 0, err
	}
	SortEvents(events)
	if err := s.rewrite(events); err != nil {
		return 0, err
	}
	s.log.Info().Int("events", len(events)).Msg("event log formatted")
	return len(events), nil
}
