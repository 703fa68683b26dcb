package folio

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Modification is a rule rewriting the events of an alternate history. The
// set of rules is closed: RemoveTicker, RemoveEvent, ScaleTicker,
// RepriceTrade and AddTrade.
type Modification interface {
	// Kind returns the "type" tag of the rule.
	Kind() string
	// apply returns the rewritten events and whether events were added or
	// removed.
	apply(events []Event) ([]Event, bool)
}

// RemoveTicker removes every event referencing Ticker.
type RemoveTicker struct {
	Ticker string `json:"ticker"`
}

// RemoveEvent removes the event with EventID.
type RemoveEvent struct {
	EventID int64 `json:"event_id"`
}

// ScaleTicker multiplies the share and cash magnitudes of every event of
// Ticker by Factor. Prices are left as they are.
type ScaleTicker struct {
	Ticker string          `json:"ticker"`
	Factor decimal.Decimal `json:"factor"`
}

// RepriceTrade changes the price of a TRADE event. Its total and cash delta
// follow, and the gain of a SELL moves by the change of its total.
type RepriceTrade struct {
	EventID int64           `json:"event_id"`
	Price   decimal.Decimal `json:"price"`
}

// AddTrade inserts a hypothetical trade at Timestamp.
type AddTrade struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    TradeAction     `json:"action"`
	Ticker    string          `json:"ticker"`
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	GainLoss  decimal.Decimal `json:"gain_loss,omitzero"`
}

func (RemoveTicker) Kind() string { return "remove_ticker" }
func (RemoveEvent) Kind() string  { return "remove_event" }
func (ScaleTicker) Kind() string  { return "scale_ticker" }
func (RepriceTrade) Kind() string { return "reprice_trade" }
func (AddTrade) Kind() string     { return "add_trade" }

func (m RemoveTicker) apply(events []Event) ([]Event, bool) {
	n := len(events)
	events = slices.DeleteFunc(events, tickerEvents(events, m.Ticker))
	return events, len(events) != n
}

func (m RemoveEvent) apply(events []Event) ([]Event, bool) {
	n := len(events)
	events = slices.DeleteFunc(events, func(e Event) bool { return e.ID == m.EventID })
	return events, len(events) != n
}

func (m ScaleTicker) apply(events []Event) ([]Event, bool) {
	f := m.Factor
	selected := tickerEvents(events, m.Ticker)
	for i, e := range events {
		if !selected(e) {
			continue
		}
		switch p := e.Data.(type) {
		case Trade:
			p.Shares = p.Shares.Mul(f)
			p.Total = p.Total.Mul(f)
			p.GainLoss = p.GainLoss.Mul(f)
			e.Data = p
		case OptionOpen:
			p.Contracts = decimal.NewFromInt(p.Contracts).Mul(f).Round(0).IntPart()
			p.Premium = p.Premium.Mul(f)
			e.Data = p
		case OptionTerminal:
			p.Profit = p.Profit.Mul(f)
			p.CloseCost = p.CloseCost.Mul(f)
			e.Data = p
		case Dividend:
			p.Amount = p.Amount.Mul(f)
			e.Data = p
		}
		e.CashDelta = e.CashDelta.Mul(f)
		events[i] = e
	}
	return events, false
}

// tickerEvents returns a predicate selecting the events of ticker in events.
// A terminal without a ticker belongs to the option it would close in a
// replay: the open reached by the first of its keys.
func tickerEvents(events []Event, ticker string) func(Event) bool {
	owners := make(map[string]string)
	for _, e := range events {
		p, ok := e.Data.(OptionOpen)
		if !ok {
			continue
		}
		for _, k := range p.OptionAliases(e.ID) {
			if _, taken := owners[k]; !taken {
				owners[k] = p.Symbol
			}
		}
	}
	t := normTicker(ticker)
	return func(e Event) bool {
		if e.References(t) {
			return true
		}
		p, ok := e.Data.(OptionTerminal)
		if !ok || p.Symbol != "" {
			return false
		}
		for _, k := range p.OptionKeys() {
			if owner, ok := owners[k]; ok {
				return t != "" && owner == t
			}
		}
		return false
	}
}

func (m RepriceTrade) apply(events []Event) ([]Event, bool) {
	for i, e := range events {
		p, ok := e.Data.(Trade)
		if e.ID != m.EventID || e.Type != TypeTrade || !ok {
			continue
		}
		total := p.Shares.Price(m.Price)
		if p.IsSell() {
			p.GainLoss = p.GainLoss.Add(total.Sub(p.Total))
		}
		p.Price = m.Price
		p.Total = total
		e.Data = p
		events[i] = e.Normalized()
	}
	return events, false
}

func (m AddTrade) apply(events []Event) ([]Event, bool) {
	p := NewTrade(m.Action, m.Ticker, m.Shares, m.Price)
	p.GainLoss = m.GainLoss
	d := NewDraft(TypeTrade, p)
	d.Notes = "hypothetical trade"
	d.Tags = []string{"what-if"}
	return append(events, d.event(maxID(events)+1, m.Timestamp.UTC())), true
}

// ApplyModifications applies mods in order to a copy of events. After any
// rule that added or removed events, the events are put in fold order and
// renumbered from 1, references to option opens follow.
func ApplyModifications(events []Event, mods ...Modification) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	for _, m := range mods {
		var structural bool
		out, structural = m.apply(out)
		if structural {
			out = renumber(out)
		}
	}
	return out
}

// renumber sorts events in fold order and gives them the ids 1..N.
func renumber(events []Event) []Event {
	SortEvents(events)
	ids := make(map[int64]int64, len(events))
	for i := range events {
		ids[events[i].ID] = int64(i + 1)
		events[i].ID = int64(i + 1)
	}
	for i, e := range events {
		p, ok := e.Data.(OptionTerminal)
		if !ok || p.OpenEventID == 0 {
			continue
		}
		if id, ok := ids[p.OpenEventID]; ok {
			p.OpenEventID = id
		} else {
			// the open was removed
			p.OpenEventID = 0
		}
		events[i].Data = p
	}
	return events
}

func marshalModification(m Modification) ([]byte, error) {
	var w jsonObjectWriter
	w.Append("type", m.Kind())
	w.EmbedFrom(m)
	return w.MarshalJSON()
}

// Modifications is a list of rules, encoded as JSON objects tagged by their
// "type".
type Modifications []Modification

func (ms Modifications) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(ms))
	for _, m := range ms {
		b, err := marshalModification(m)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (ms *Modifications) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*ms = make(Modifications, 0, len(raw))
	for _, r := range raw {
		m, err := DecodeModification(r)
		if err != nil {
			return err
		}
		*ms = append(*ms, m)
	}
	return nil
}

// DecodeModification decodes one rule from its tagged JSON object.
func DecodeModification(b []byte) (Modification, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return nil, fmt.Errorf("invalid modification: %w", err)
	}
	var m Modification
	var err error
	switch tag.Type {
	case "remove_ticker":
		var v RemoveTicker
		err = json.Unmarshal(b, &v)
		v.Ticker = normTicker(v.Ticker)
		m = v
	case "remove_event":
		var v RemoveEvent
		err = json.Unmarshal(b, &v)
		m = v
	case "scale_ticker":
		var v ScaleTicker
		err = json.Unmarshal(b, &v)
		v.Ticker = normTicker(v.Ticker)
		m = v
	case "reprice_trade":
		var v RepriceTrade
		err = json.Unmarshal(b, &v)
		m = v
	case "add_trade":
		var v AddTrade
		err = json.Unmarshal(b, &v)
		v.Ticker = normTicker(v.Ticker)
		v.Action = TradeAction(normTicker(string(v.Action)))
		m = v
	default:
		return nil, fmt.Errorf("unknown modification type %q", tag.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s modification: %w", tag.Type, err)
	}
	return m, nil
}
