package folio

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/folio/date"
)

// ReplayOption configures a reconstruction.
type ReplayOption func(*replayConfig)

type replayConfig struct {
	asOf   time.Time
	ticker string
	strict bool
}

// AsOf stops the replay at the first event whose timestamp is after t.
func AsOf(t time.Time) ReplayOption {
	return func(c *replayConfig) { c.asOf = t }
}

// ForTicker folds only the events that reference ticker. Starting cash is
// kept in full, so the cash and values of such a state undercount the
// portfolio.
func ForTicker(ticker string) ReplayOption {
	return func(c *replayConfig) { c.ticker = normTicker(ticker) }
}

// Strict records a Warning for every data quality problem the replay
// absorbs.
func Strict() ReplayOption {
	return func(c *replayConfig) { c.strict = true }
}

// Replayer folds events into a State one at a time.
//
// Calling Apply with the events before T1 and then with the events after it
// reaches the same State as a single call with all of them.
type Replayer struct {
	cfg     replayConfig
	state   *State
	book    *optionBook
	stopped bool
}

// NewReplayer returns a Replayer seeded with start.
func NewReplayer(start StartingState, opts ...ReplayOption) *Replayer {
	var cfg replayConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	s := newState(start, cfg.ticker)
	return &Replayer{cfg: cfg, state: s, book: newOptionBook(nil)}
}

// Apply folds events in the given order. It returns false as soon as an
// event past the as-of boundary is met, that event and all the following
// ones, including those of later calls, are left unfolded.
func (r *Replayer) Apply(events ...Event) bool {
	for _, e := range events {
		if r.stopped {
			return false
		}
		if !r.cfg.asOf.IsZero() && e.Timestamp.After(r.cfg.asOf) {
			r.stopped = true
			return false
		}
		r.apply(e)
	}
	return !r.stopped
}

// State returns a copy of the folded state with its derived values
// computed.
func (r *Replayer) State() *State {
	s := r.state.clone()
	s.computeValues()
	return s
}

// Reconstruct folds events over start. It never fails: data quality
// problems yield zero values and, in strict mode, warnings.
func Reconstruct(start StartingState, events []Event, opts ...ReplayOption) *State {
	r := NewReplayer(start, opts...)
	r.Apply(events...)
	return r.State()
}

func (r *Replayer) warn(e Event, code WarningCode, format string, args ...any) {
	if !r.cfg.strict {
		return
	}
	r.state.Warnings = append(r.state.Warnings, Warning{
		Code:    code,
		EventID: e.ID,
		Message: fmt.Sprintf(format, args...),
	})
}

// selected reports whether e passes the ticker filter. A terminal event
// with no ticker is selected when it closes an option of the filtered
// ticker.
func (r *Replayer) selected(e Event) bool {
	if r.cfg.ticker == "" {
		return true
	}
	if e.References(r.cfg.ticker) {
		return true
	}
	if t, ok := e.Data.(OptionTerminal); ok && e.Type.IsOptionTerminal() && t.Symbol == "" {
		_, matched := r.book.match(t)
		return matched
	}
	return false
}

func (r *Replayer) apply(e Event) {
	if e.IsDeleted || e.Type.LogOnly() {
		return
	}
	e.Data = normPayload(e.Data)
	if !r.selected(e) {
		return
	}
	s := r.state
	if !e.Type.Known() {
		r.warn(e, WarnUnknownEventType, "event type %q is ignored", e.Type)
		return
	}
	if !s.LastTimestamp.IsZero() && e.Timestamp.Before(s.LastTimestamp) {
		r.warn(e, WarnOutOfOrder, "timestamp %s is before %s", e.Timestamp.Format(TimestampFormat), s.LastTimestamp.Format(TimestampFormat))
	}
	for _, field := range e.Malformed {
		r.warn(e, WarnMalformedField, "field %q read as zero", field)
	}
	if !e.CashConsistent() {
		r.warn(e, WarnCashFlagMismatch, "affects_cash is %t with cash_delta %s", e.AffectsCash, e.CashDelta)
	}
	if want := CashEffect(e.Type, e.Data); !want.Equal(e.CashDelta) {
		r.warn(e, WarnCashRuleMismatch, "cash_delta is %s, expected %s", e.CashDelta, want)
	}

	switch e.Type {
	case TypeTrade:
		r.trade(e, as[Trade](e.Data))
	case TypeOptionOpen:
		r.optionOpen(e, as[OptionOpen](e.Data))
	case TypeOptionClose, TypeOptionExpire, TypeOptionAssign:
		r.optionTerminal(e, as[OptionTerminal](e.Data))
	case TypeDividend:
		p := as[Dividend](e.Data)
		s.YTDDividends = s.YTDDividends.Add(p.Amount)
		s.YTDIncome = s.YTDIncome.Add(p.Amount)
	case TypeDeposit, TypeAdjustment:
	case TypeWithdrawal:
		s.Withdrawals = s.Withdrawals.Add(e.CashDelta.Abs())
	case TypePriceUpdate:
		p := as[PriceUpdate](e.Data)
		if p.Symbol == "" {
			r.warn(e, WarnMissingTicker, "price update without ticker")
			break
		}
		s.LatestPrices[p.Symbol] = p.Price
	case TypeNote, TypeGoalUpdate, TypeStrategyUpdate:
		p := as[Info](e.Data)
		category := strings.ToLower(strings.TrimSpace(p.Category))
		if category == "" {
			category = journalCategory(e.Type)
		}
		s.Journal[category] = append(s.Journal[category], InfoEntry{
			EventID:   e.ID,
			Timestamp: e.Timestamp,
			Type:      e.Type,
			Text:      p.Text,
		})
	}

	s.Cash = s.Cash.Add(e.CashDelta)
	s.EventsProcessed++
	s.LastEventID = e.ID
	if e.Timestamp.After(s.LastTimestamp) {
		s.LastTimestamp = e.Timestamp
	}
}

func (r *Replayer) trade(e Event, p Trade) {
	s := r.state
	if p.Symbol == "" {
		r.warn(e, WarnMissingTicker, "trade without ticker")
		return
	}
	if !p.Shares.IsPositive() {
		r.warn(e, WarnNonPositiveShares, "trade of %s shares", p.Shares)
	}
	total := p.Total.Abs()
	if total.IsZero() {
		total = p.Shares.Price(p.Price).Abs()
	}

	if !p.IsSell() {
		held := s.Holdings[p.Symbol].Add(p.Shares)
		cb := s.CostBasis[p.Symbol]
		cb.TotalCost = cb.TotalCost.Add(total)
		cb.Shares = cb.Shares.Add(p.Shares)
		if !cb.Shares.IsZero() {
			cb.AvgPrice = cb.TotalCost.Div(cb.Shares.Decimal())
		}
		s.Holdings[p.Symbol] = held
		s.CostBasis[p.Symbol] = cb
		r.dropEmpty(p.Symbol)
		return
	}

	before := s.Holdings[p.Symbol]
	if p.Shares.GreaterThan(before) {
		r.warn(e, WarnOversold, "selling %s shares of %s, %s held", p.Shares, p.Symbol, before)
	}
	s.Holdings[p.Symbol] = before.Sub(p.Shares)
	if cb, ok := s.CostBasis[p.Symbol]; ok && before.IsPositive() {
		sold := p.Shares
		if sold.GreaterThan(before) {
			sold = before
		}
		// total_cost × sold / before, the average price is left as is.
		cb.TotalCost = cb.TotalCost.Sub(cb.TotalCost.Mul(sold.Decimal()).Div(before.Decimal()))
		cb.Shares = cb.Shares.Sub(sold)
		s.CostBasis[p.Symbol] = cb
	}
	s.YTDTradingGains = s.YTDTradingGains.Add(p.GainLoss)
	s.YTDIncome = s.YTDIncome.Add(p.GainLoss)
	r.dropEmpty(p.Symbol)
}

// dropEmpty removes the holding and cost basis of a ticker with no shares
// left.
func (r *Replayer) dropEmpty(ticker string) {
	if r.state.Holdings[ticker].IsZero() {
		delete(r.state.Holdings, ticker)
		delete(r.state.CostBasis, ticker)
	}
}

func (r *Replayer) optionOpen(e Event, p OptionOpen) {
	s := r.state
	if p.Symbol == "" {
		r.warn(e, WarnMissingTicker, "option open without ticker")
	}
	o := ActiveOption{
		Key:         p.OptionKey(e.ID),
		PositionID:  p.PositionID,
		LegacyUUID:  p.LegacyUUID,
		OpenEventID: e.ID,
		OpenedAt:    e.Timestamp,
		Ticker:      p.Symbol,
		Strategy:    p.Strategy,
		Strike:      p.Strike,
		Expiration:  p.Expiration,
		Contracts:   p.Contracts,
		Premium:     p.Premium,
		ManualClose: p.ManualClose,
	}
	if !r.book.add(o) {
		r.warn(e, WarnDuplicateOption, "option key %q is already active", o.Key)
	}
	s.ActiveOptions = append(s.ActiveOptions, o)
	s.YTDOptionIncome = s.YTDOptionIncome.Add(p.Premium)
	s.YTDIncome = s.YTDIncome.Add(p.Premium)
}

func (r *Replayer) optionTerminal(e Event, p OptionTerminal) {
	s := r.state
	// the premium was income from the open on, the terminal trues it up to
	// the realized profit of the position.
	income := p.Profit
	if key, ok := r.book.match(p); ok {
		if o, ok := s.ActiveOption(key); ok {
			income = income.Sub(o.Premium)
		}
		r.book.remove(s, key)
	} else {
		r.warn(e, WarnUnmatchedOption, "no active option for keys %v", p.OptionKeys())
	}
	s.YTDOptionIncome = s.YTDOptionIncome.Add(income)
	s.YTDIncome = s.YTDIncome.Add(income)
}

func journalCategory(t EventType) string {
	switch t {
	case TypeGoalUpdate:
		return "goals"
	case TypeStrategyUpdate:
		return "strategies"
	default:
		return "notes"
	}
}

// as returns the payload as a T, or the zero T when the event carries a
// payload of another family.
func as[T Payload](p Payload) T {
	v, _ := p.(T)
	return v
}

// ReconstructAt folds the events up to the end of day d.
func ReconstructAt(start StartingState, events []Event, d date.Date, opts ...ReplayOption) *State {
	return Reconstruct(start, events, append(opts, AsOf(d.End(time.UTC)))...)
}
