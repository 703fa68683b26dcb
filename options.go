package folio

import (
	"strconv"
	"time"

	"github.com/etnz/folio/date"
)

// Option keys are derived from the first identifier present, in this order:
// the position id, the legacy uuid, the event id of the open.
const (
	legacyKeyPrefix = "uuid:"
	eventKeyPrefix  = "event:"
)

// OptionKey returns the canonical identifying key of an option open.
func (p OptionOpen) OptionKey(openEventID int64) string {
	return optionKey(p.PositionID, p.LegacyUUID, openEventID)
}

// OptionKeys returns the keys a terminal event can match, most specific
// first.
func (p OptionTerminal) OptionKeys() []string {
	var keys []string
	if p.PositionID != "" {
		keys = append(keys, p.PositionID)
	}
	if p.LegacyUUID != "" {
		keys = append(keys, legacyKeyPrefix+p.LegacyUUID)
	}
	if p.OpenEventID != 0 {
		keys = append(keys, eventKeyPrefix+strconv.FormatInt(p.OpenEventID, 10))
	}
	return keys
}

func optionKey(positionID, legacy string, id int64) string {
	switch {
	case positionID != "":
		return positionID
	case legacy != "":
		return legacyKeyPrefix + legacy
	default:
		return eventKeyPrefix + strconv.FormatInt(id, 10)
	}
}

// aliases returns every key a terminal event may use to refer to o.
func (o ActiveOption) aliases() []string {
	return openAliases(o.PositionID, o.LegacyUUID, o.OpenEventID)
}

// OptionAliases returns every key a terminal event may use to refer to the
// open p recorded as event openEventID.
func (p OptionOpen) OptionAliases(openEventID int64) []string {
	return openAliases(p.PositionID, p.LegacyUUID, openEventID)
}

func openAliases(positionID, legacy string, id int64) []string {
	keys := []string{eventKeyPrefix + strconv.FormatInt(id, 10)}
	if positionID != "" {
		keys = append(keys, positionID)
	}
	if legacy != "" {
		keys = append(keys, legacyKeyPrefix+legacy)
	}
	return keys
}

// optionBook indexes the active options of a State by every alias they can
// be matched with.
type optionBook struct {
	alias map[string]string // alias -> canonical key
}

func newOptionBook(active []ActiveOption) *optionBook {
	b := &optionBook{alias: make(map[string]string)}
	for _, o := range active {
		b.add(o)
	}
	return b
}

// add indexes o and reports whether its key was free.
func (b *optionBook) add(o ActiveOption) bool {
	_, taken := b.alias[o.Key]
	for _, a := range o.aliases() {
		if _, ok := b.alias[a]; !ok {
			b.alias[a] = o.Key
		}
	}
	if !taken {
		b.alias[o.Key] = o.Key
	}
	return !taken
}

// match returns the canonical key of the active option p closes.
func (b *optionBook) match(p OptionTerminal) (string, bool) {
	for _, k := range p.OptionKeys() {
		if key, ok := b.alias[k]; ok {
			return key, true
		}
	}
	return "", false
}

// remove drops the first active option with key from s. The aliases are
// released once no option with that key is left.
func (b *optionBook) remove(s *State, key string) {
	for i, o := range s.ActiveOptions {
		if o.Key != key {
			continue
		}
		s.ActiveOptions = append(s.ActiveOptions[:i:i], s.ActiveOptions[i+1:]...)
		if _, left := s.ActiveOption(key); !left {
			for a, k := range b.alias {
				if k == key {
					delete(b.alias, a)
				}
			}
		}
		return
	}
}

// ExpiredOptions returns the OPTION_EXPIRE drafts closing every active
// option whose expiration is before today, unless it was marked for manual
// close. Each option keeps its full premium and the draft is backdated to
// the end of the expiration day.
func ExpiredOptions(today date.Date, s *State) []Draft {
	var drafts []Draft
	for _, o := range s.ActiveOptions {
		if o.ManualClose || o.Expiration.IsZero() || !o.Expiration.Before(today) {
			continue
		}
		d := NewDraft(TypeOptionExpire, OptionTerminal{
			Symbol:      o.Ticker,
			PositionID:  o.PositionID,
			LegacyUUID:  o.LegacyUUID,
			OpenEventID: o.OpenEventID,
			Strike:      o.Strike,
			Profit:      o.Premium,
		})
		d.Notes = "expired worthless"
		d.Tags = []string{"auto-expire"}
		d.Timestamp = o.Expiration.End(time.UTC)
		drafts = append(drafts, d)
	}
	return drafts
}
