package folio

import (
	"github.com/etnz/folio/date"
	"github.com/google/uuid"
)

// positionIndex resolves the legacy references of option terminal events to
// the position id of their open.
type positionIndex struct {
	byLegacy map[string]OptionOpen
	byEvent  map[int64]OptionOpen
	newID    func() string
}

func newPositionIndex(events []Event) *positionIndex {
	x := &positionIndex{
		byLegacy: make(map[string]OptionOpen),
		byEvent:  make(map[int64]OptionOpen),
		newID:    uuid.NewString,
	}
	for _, e := range events {
		x.add(e)
	}
	return x
}

func (x *positionIndex) add(e Event) {
	p, ok := e.Data.(OptionOpen)
	if e.Type != TypeOptionOpen || !ok {
		return
	}
	x.byEvent[e.ID] = p
	if p.LegacyUUID != "" {
		if _, dup := x.byLegacy[p.LegacyUUID]; !dup {
			x.byLegacy[p.LegacyUUID] = p
		}
	}
}

func (x *positionIndex) resolve(p OptionTerminal) (OptionOpen, bool) {
	if p.LegacyUUID != "" {
		if o, ok := x.byLegacy[p.LegacyUUID]; ok {
			return o, true
		}
	}
	if p.OpenEventID != 0 {
		if o, ok := x.byEvent[p.OpenEventID]; ok {
			return o, true
		}
	}
	return OptionOpen{}, false
}

// stamp gives an option event its canonical position id: a fresh one for an
// open, the one of the resolved open for a terminal event. It reports
// whether e changed and indexes opens.
func (x *positionIndex) stamp(e *Event) bool {
	changed := false
	switch p := e.Data.(type) {
	case OptionOpen:
		if e.Type != TypeOptionOpen {
			return false
		}
		if p.PositionID == "" {
			p.PositionID = x.newID()
			e.Data = p
			changed = true
		}
	case OptionTerminal:
		if !e.Type.IsOptionTerminal() || p.PositionID != "" {
			return false
		}
		open, ok := x.resolve(p)
		if !ok || open.PositionID == "" {
			return false
		}
		p.PositionID = open.PositionID
		if p.Symbol == "" {
			p.Symbol = open.Symbol
		}
		e.Data = p
		changed = true
	}
	x.add(*e)
	return changed
}

// MigrateOptionKeys stamps the canonical position id on every option event
// that lacks one and returns the number of events rewritten. Running it
// again is a no-op.
func (s *Store) MigrateOptionKeys() (int, error) {
	unlock, err := s.lock(true)
	if err != nil {
		return 0, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return 0, err
	}
	// Opens are stamped first so that terminal events appearing before their
	// open in file order still resolve.
	x := newPositionIndex(nil)
	n := 0
	for i := range events {
		if events[i].Type == TypeOptionOpen && x.stamp(&events[i]) {
			n++
		}
	}
	for i := range events {
		if events[i].Type.IsOptionTerminal() && x.stamp(&events[i]) {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.rewrite(events); err != nil {
		return 0, err
	}
	s.log.Info().Int("migrated", n).Msg("option keys migrated")
	return n, nil
}

// ExpireOptions appends an OPTION_EXPIRE event for every active option that
// expired before today, and returns their ids.
func (s *Store) ExpireOptions(start StartingState, today date.Date) ([]int64, error) {
	events, err := s.Events()
	if err != nil {
		return nil, err
	}
	drafts := ExpiredOptions(today, Reconstruct(start, events))
	if len(drafts) == 0 {
		return nil, nil
	}
	ids, err := s.AppendBatch(drafts)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("expired", len(ids)).Str("today", today.String()).Msg("options expired")
	return ids, nil
}
