package folio

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the discriminator of an event record.
type EventType string

// Event types that take part in the replay.
const (
	TypeTrade          EventType = "TRADE"
	TypeOptionOpen     EventType = "OPTION_OPEN"
	TypeOptionClose    EventType = "OPTION_CLOSE"
	TypeOptionExpire   EventType = "OPTION_EXPIRE"
	TypeOptionAssign   EventType = "OPTION_ASSIGN"
	TypeDividend       EventType = "DIVIDEND"
	TypeDeposit        EventType = "DEPOSIT"
	TypeWithdrawal     EventType = "WITHDRAWAL"
	TypePriceUpdate    EventType = "PRICE_UPDATE"
	TypeNote           EventType = "NOTE"
	TypeGoalUpdate     EventType = "GOAL_UPDATE"
	TypeStrategyUpdate EventType = "STRATEGY_UPDATE"
	TypeAdjustment     EventType = "ADJUSTMENT"
)

// Log-only event types. They are kept in the log for the record and are
// never folded.
const (
	TypeInsight        EventType = "INSIGHT"
	TypeScanResult     EventType = "SCAN_RESULT"
	TypeRecommendation EventType = "RECOMMENDATION"
	TypeSystemLog      EventType = "SYSTEM_LOG"
)

// ErrUnknownEventType is returned by ParseEventType.
var ErrUnknownEventType = errors.New("unknown event type")

var eventTypes = []EventType{
	TypeTrade, TypeOptionOpen, TypeOptionClose, TypeOptionExpire, TypeOptionAssign,
	TypeDividend, TypeDeposit, TypeWithdrawal, TypePriceUpdate,
	TypeNote, TypeGoalUpdate, TypeStrategyUpdate, TypeAdjustment,
	TypeInsight, TypeScanResult, TypeRecommendation, TypeSystemLog,
}

// EventTypes returns every known event type.
func EventTypes() []EventType { return slices.Clone(eventTypes) }

// ParseEventType parses an event type, case-insensitively.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Known() {
		return t, fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

// Known reports whether t belongs to the closed set of event types.
func (t EventType) Known() bool { return slices.Contains(eventTypes, t) }

// LogOnly reports whether events of this type are ignored by the replay.
func (t EventType) LogOnly() bool {
	switch t {
	case TypeInsight, TypeScanResult, TypeRecommendation, TypeSystemLog:
		return true
	}
	return false
}

// IsOptionTerminal reports whether t closes an option position.
func (t EventType) IsOptionTerminal() bool {
	return t == TypeOptionClose || t == TypeOptionExpire || t == TypeOptionAssign
}

func (t EventType) String() string { return string(t) }

// Reason is a descriptive annotation, it never changes the replay.
type Reason struct {
	Primary     string         `json:"primary,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Insight     map[string]any `json:"insight,omitempty"`
}

// Event is one immutable record of the log.
type Event struct {
	ID          int64
	Timestamp   time.Time
	Type        EventType
	Data        Payload
	Reason      *Reason
	Notes       string
	Tags        []string
	AffectsCash bool
	CashDelta   decimal.Decimal
	IsDeleted   bool

	// Extra holds data fields this version does not know about. They are
	// written back verbatim.
	Extra map[string]json.RawMessage
	// Malformed lists the data fields that could not be decoded and were
	// read as zero. It is not persisted.
	Malformed []string
}

// Ticker returns the ticker referenced by the payload, upper cased, or "".
func (e Event) Ticker() string {
	if e.Data == nil {
		return ""
	}
	return normTicker(e.Data.Ticker())
}

// References reports whether the event payload references ticker.
func (e Event) References(ticker string) bool {
	t := normTicker(ticker)
	return t != "" && e.Ticker() == t
}

// CashConsistent reports whether affects_cash agrees with cash_delta.
func (e Event) CashConsistent() bool { return e.AffectsCash == !e.CashDelta.IsZero() }

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	c := e
	if e.Data != nil {
		c.Data = e.Data.clone()
	}
	if e.Reason != nil {
		r := *e.Reason
		r.Insight = maps.Clone(e.Reason.Insight)
		c.Reason = &r
	}
	c.Tags = slices.Clone(e.Tags)
	c.Extra = maps.Clone(e.Extra)
	c.Malformed = slices.Clone(e.Malformed)
	return c
}

// Draft is an event that has not been appended yet: the store assigns its id
// and, unless it is a backfill, its timestamp.
type Draft struct {
	Type        EventType
	Data        Payload
	Reason      *Reason
	Notes       string
	Tags        []string
	AffectsCash bool
	CashDelta   decimal.Decimal
	// Timestamp is optional, the store clock is used when it is zero.
	Timestamp time.Time
}

// Normalize sets AffectsCash and CashDelta from the cash rule table.
func (d Draft) Normalize() Draft {
	d.CashDelta = CashEffect(d.Type, d.Data)
	d.AffectsCash = !d.CashDelta.IsZero()
	return d
}

// NewDraft returns a draft whose cash fields follow the cash rule table.
func NewDraft(t EventType, data Payload) Draft {
	return Draft{Type: t, Data: data}.Normalize()
}

func (d Draft) event(id int64, ts time.Time) Event {
	e := Event{
		ID:          id,
		Timestamp:   ts,
		Type:        d.Type,
		Data:        normPayload(d.Data),
		Reason:      d.Reason,
		Notes:       d.Notes,
		Tags:        d.Tags,
		AffectsCash: d.AffectsCash,
		CashDelta:   d.CashDelta,
	}
	return e.Clone()
}

func normTicker(t string) string { return strings.ToUpper(strings.TrimSpace(t)) }
