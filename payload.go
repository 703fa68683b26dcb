package folio

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// Payload is the type specific part of an event. The set of payloads is
// closed: Trade, OptionOpen, OptionTerminal, Dividend, CashFlow, PriceUpdate
// and Info.
type Payload interface {
	// Ticker returns the ticker referenced by the payload, or "".
	Ticker() string

	appendTo(w *jsonObjectWriter)
	clone() Payload
}

// TradeAction is the side of a trade.
type TradeAction string

const (
	Buy  TradeAction = "BUY"
	Sell TradeAction = "SELL"
)

// Trade is the payload of TRADE events.
type Trade struct {
	Action TradeAction
	Symbol string
	Shares Quantity
	Price  decimal.Decimal
	Total  decimal.Decimal
	// GainLoss is the realized gain of a SELL, computed by whoever appended it.
	GainLoss decimal.Decimal
}

// NewTrade returns a trade whose total is shares × price.
func NewTrade(action TradeAction, ticker string, shares, price decimal.Decimal) Trade {
	return Trade{
		Action: action,
		Symbol: normTicker(ticker),
		Shares: Q(shares),
		Price:  price,
		Total:  shares.Mul(price),
	}
}

func (p Trade) Ticker() string { return p.Symbol }
func (p Trade) clone() Payload { return p }
func (p Trade) IsSell() bool   { return strings.EqualFold(string(p.Action), string(Sell)) }
func (p Trade) appendTo(w *jsonObjectWriter) {
	w.Append("action", p.Action)
	w.Append("ticker", p.Symbol)
	w.Append("shares", p.Shares)
	w.Append("price", p.Price)
	w.Append("total", p.Total)
	w.Optional("gain_loss", p.GainLoss)
}

// OptionOpen is the payload of OPTION_OPEN events.
type OptionOpen struct {
	Symbol     string
	Strategy   string
	Strike     decimal.Decimal
	Expiration date.Date
	Contracts  int64
	// Premium is the total premium, positive when it was collected.
	Premium decimal.Decimal
	// PositionID correlates the open with its terminal event.
	PositionID string
	// LegacyUUID is the identifier used by older records.
	LegacyUUID string
	// ManualClose opts the position out of automatic expiration.
	ManualClose bool
}

func (p OptionOpen) Ticker() string { return p.Symbol }
func (p OptionOpen) clone() Payload { return p }
func (p OptionOpen) appendTo(w *jsonObjectWriter) {
	w.Append("ticker", p.Symbol)
	w.Optional("strategy", p.Strategy)
	w.Append("strike", p.Strike)
	w.Optional("expiration", p.Expiration)
	w.Append("contracts", p.Contracts)
	w.Append("premium", p.Premium)
	w.Optional("position_id", p.PositionID)
	w.Optional("uuid", p.LegacyUUID)
	w.Optional("manual_close", p.ManualClose)
}

// OptionTerminal is the payload of OPTION_CLOSE, OPTION_EXPIRE and
// OPTION_ASSIGN events.
type OptionTerminal struct {
	Symbol      string
	PositionID  string
	LegacyUUID  string
	OpenEventID int64
	Strike      decimal.Decimal
	// Profit is the option income realized by the terminal event.
	Profit decimal.Decimal
	// CloseCost is what was paid to buy the position back.
	CloseCost decimal.Decimal
}

func (p OptionTerminal) Ticker() string { return p.Symbol }
func (p OptionTerminal) clone() Payload { return p }
func (p OptionTerminal) appendTo(w *jsonObjectWriter) {
	w.Optional("ticker", p.Symbol)
	w.Optional("position_id", p.PositionID)
	w.Optional("uuid", p.LegacyUUID)
	w.Optional("open_event_id", p.OpenEventID)
	w.Optional("strike", p.Strike)
	w.Append("profit", p.Profit)
	w.Optional("close_cost", p.CloseCost)
}

// Dividend is the payload of DIVIDEND events.
type Dividend struct {
	Symbol string
	Amount decimal.Decimal
}

func (p Dividend) Ticker() string { return p.Symbol }
func (p Dividend) clone() Payload { return p }
func (p Dividend) appendTo(w *jsonObjectWriter) {
	w.Append("ticker", p.Symbol)
	w.Append("amount", p.Amount)
}

// CashFlow is the payload of DEPOSIT, WITHDRAWAL and ADJUSTMENT events.
type CashFlow struct {
	Amount      decimal.Decimal
	Description string
}

func (p CashFlow) Ticker() string { return "" }
func (p CashFlow) clone() Payload { return p }
func (p CashFlow) appendTo(w *jsonObjectWriter) {
	w.Append("amount", p.Amount)
	w.Optional("description", p.Description)
}

// PriceUpdate is the payload of PRICE_UPDATE events.
type PriceUpdate struct {
	Symbol string
	Price  decimal.Decimal
}

func (p PriceUpdate) Ticker() string { return p.Symbol }
func (p PriceUpdate) clone() Payload { return p }
func (p PriceUpdate) appendTo(w *jsonObjectWriter) {
	w.Append("ticker", p.Symbol)
	w.Append("price", p.Price)
}

// Info is the payload of NOTE, GOAL_UPDATE, STRATEGY_UPDATE and of the
// log-only event types.
type Info struct {
	Category string
	Text     string
	Symbol   string
}

func (p Info) Ticker() string { return p.Symbol }
func (p Info) clone() Payload { return p }
func (p Info) appendTo(w *jsonObjectWriter) {
	w.Optional("category", p.Category)
	w.Optional("text", p.Text)
	w.Optional("ticker", p.Symbol)
}

// normPayload dereferences pointers to payloads so that type switches only
// ever see values.
func normPayload(p Payload) Payload {
	switch v := p.(type) {
	case *Trade:
		return *v
	case *OptionOpen:
		return *v
	case *OptionTerminal:
		return *v
	case *Dividend:
		return *v
	case *CashFlow:
		return *v
	case *PriceUpdate:
		return *v
	case *Info:
		return *v
	}
	return p
}

// fieldReader reads payload fields leniently: a field that cannot be decoded
// is read as zero and its name recorded.
type fieldReader struct {
	m   map[string]json.RawMessage
	bad []string
}

func (f *fieldReader) take(key string) (json.RawMessage, bool) {
	raw, ok := f.m[key]
	if !ok {
		return nil, false
	}
	delete(f.m, key)
	if string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (f *fieldReader) str(keys ...string) string {
	for _, key := range keys {
		raw, ok := f.take(key)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			// numbers are acceptable strings
			var n json.Number
			if json.Unmarshal(raw, &n) != nil {
				f.bad = append(f.bad, key)
				continue
			}
			s = n.String()
		}
		return s
	}
	return ""
}

func (f *fieldReader) dec(keys ...string) decimal.Decimal {
	for _, key := range keys {
		raw, ok := f.take(key)
		if !ok {
			continue
		}
		var d decimal.Decimal
		if err := d.UnmarshalJSON(raw); err != nil {
			f.bad = append(f.bad, key)
			continue
		}
		return d
	}
	return decimal.Zero
}

func (f *fieldReader) num(keys ...string) int64 {
	d := f.dec(keys...)
	return d.Round(0).IntPart()
}

func (f *fieldReader) flag(key string) bool {
	raw, ok := f.take(key)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseBool(s); err == nil {
			return v
		}
	}
	f.bad = append(f.bad, key)
	return false
}

func (f *fieldReader) day(key string) date.Date {
	s := f.str(key)
	if s == "" {
		return date.Date{}
	}
	d, err := date.Parse(s)
	if err != nil {
		f.bad = append(f.bad, key)
		return date.Date{}
	}
	return d
}

// decodePayload builds the payload of an event type from its raw fields.
// Fields it consumed are removed from f.m, what is left is extra data.
func decodePayload(t EventType, f *fieldReader) Payload {
	switch t {
	case TypeTrade:
		return Trade{
			Action:   TradeAction(strings.ToUpper(f.str("action", "side"))),
			Symbol:   normTicker(f.str("ticker", "symbol")),
			Shares:   Q(f.dec("shares", "quantity")),
			Price:    f.dec("price"),
			Total:    f.dec("total", "amount"),
			GainLoss: f.dec("gain_loss"),
		}
	case TypeOptionOpen:
		return OptionOpen{
			Symbol:      normTicker(f.str("ticker", "symbol")),
			Strategy:    f.str("strategy"),
			Strike:      f.dec("strike"),
			Expiration:  f.day("expiration"),
			Contracts:   f.num("contracts"),
			Premium:     f.dec("premium", "total_premium"),
			PositionID:  f.str("position_id"),
			LegacyUUID:  f.str("uuid"),
			ManualClose: f.flag("manual_close"),
		}
	case TypeOptionClose, TypeOptionExpire, TypeOptionAssign:
		return OptionTerminal{
			Symbol:      normTicker(f.str("ticker", "symbol")),
			PositionID:  f.str("position_id"),
			LegacyUUID:  f.str("uuid"),
			OpenEventID: f.num("open_event_id"),
			Strike:      f.dec("strike"),
			Profit:      f.dec("profit"),
			CloseCost:   f.dec("close_cost"),
		}
	case TypeDividend:
		return Dividend{
			Symbol: normTicker(f.str("ticker", "symbol")),
			Amount: f.dec("amount"),
		}
	case TypeDeposit, TypeWithdrawal, TypeAdjustment:
		return CashFlow{
			Amount:      f.dec("amount"),
			Description: f.str("description"),
		}
	case TypePriceUpdate:
		return PriceUpdate{
			Symbol: normTicker(f.str("ticker", "symbol")),
			Price:  f.dec("price"),
		}
	default:
		return Info{
			Category: f.str("category"),
			Text:     f.str("text", "content"),
			Symbol:   normTicker(f.str("ticker")),
		}
	}
}
