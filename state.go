package folio

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/etnz/folio/date"
	"github.com/shopspring/decimal"
)

// CostBasis is the weighted average cost record of a ticker.
type CostBasis struct {
	TotalCost decimal.Decimal `json:"total_cost"`
	Shares    Quantity        `json:"shares"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
}

// ActiveOption is an OPTION_OPEN with no terminal event yet.
type ActiveOption struct {
	Key         string          `json:"key"`
	PositionID  string          `json:"position_id,omitempty"`
	LegacyUUID  string          `json:"uuid,omitempty"`
	OpenEventID int64           `json:"open_event_id"`
	OpenedAt    time.Time       `json:"opened_at"`
	Ticker      string          `json:"ticker"`
	Strategy    string          `json:"strategy,omitempty"`
	Strike      decimal.Decimal `json:"strike"`
	Expiration  date.Date       `json:"expiration"`
	Contracts   int64           `json:"contracts"`
	Premium     decimal.Decimal `json:"premium"`
	ManualClose bool            `json:"manual_close,omitempty"`
}

// InfoEntry is a note, goal or strategy recorded in the log.
type InfoEntry struct {
	EventID   int64     `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event_type"`
	Text      string    `json:"text"`
}

// State is the portfolio as of the last event folded. Each reconstruction
// returns its own State, nothing in it is shared with the log.
type State struct {
	Cash          decimal.Decimal            `json:"cash"`
	Holdings      map[string]Quantity        `json:"holdings"`
	CostBasis     map[string]CostBasis       `json:"cost_basis"`
	ActiveOptions []ActiveOption             `json:"active_options"`
	LatestPrices  map[string]decimal.Decimal `json:"latest_prices"`
	Journal       map[string][]InfoEntry     `json:"journal,omitempty"`

	YTDIncome       decimal.Decimal `json:"ytd_income"`
	YTDTradingGains decimal.Decimal `json:"ytd_trading_gains"`
	YTDOptionIncome decimal.Decimal `json:"ytd_option_income"`
	YTDDividends    decimal.Decimal `json:"ytd_dividends"`
	Withdrawals     decimal.Decimal `json:"withdrawals"`

	EventsProcessed int       `json:"events_processed"`
	LastEventID     int64     `json:"last_event_id,omitempty"`
	LastTimestamp   time.Time `json:"last_timestamp,omitzero"`

	PortfolioValue  decimal.Decimal `json:"portfolio_value"`
	TotalValue      decimal.Decimal `json:"total_value"`
	UnrealizedGains decimal.Decimal `json:"unrealized_gains"`

	// Warnings is only filled by a strict replay.
	Warnings []Warning `json:"warnings,omitempty"`
}

func newState(start StartingState, ticker string) *State {
	s := &State{
		Cash:         start.Cash,
		Holdings:     make(map[string]Quantity),
		CostBasis:    make(map[string]CostBasis),
		LatestPrices: make(map[string]decimal.Decimal),
		Journal:      make(map[string][]InfoEntry),
	}
	for t, h := range start.Holdings {
		t = normTicker(t)
		if ticker != "" && t != ticker {
			continue
		}
		if h.Shares.IsZero() {
			continue
		}
		s.Holdings[t] = h.Shares
		total := h.Shares.Price(h.CostBasisPerShare)
		s.CostBasis[t] = CostBasis{TotalCost: total, Shares: h.Shares, AvgPrice: h.CostBasisPerShare}
	}
	return s
}

// Tickers returns the held tickers in alphabetical order.
func (s *State) Tickers() []string {
	return slices.Sorted(maps.Keys(s.Holdings))
}

// MarketValue returns shares × latest price, false when no price is known.
func (s *State) MarketValue(ticker string) (decimal.Decimal, bool) {
	price, ok := s.LatestPrices[ticker]
	if !ok {
		return decimal.Zero, false
	}
	return s.Holdings[ticker].Price(price), true
}

// Unrealized returns the unrealized gain of a ticker, false when either the
// price or the cost basis is unknown.
func (s *State) Unrealized(ticker string) (decimal.Decimal, bool) {
	value, ok := s.MarketValue(ticker)
	if !ok {
		return decimal.Zero, false
	}
	cb, ok := s.CostBasis[ticker]
	if !ok {
		return decimal.Zero, false
	}
	return value.Sub(cb.TotalCost), true
}

// ActiveOption returns the active option with the given key.
func (s *State) ActiveOption(key string) (ActiveOption, bool) {
	for _, o := range s.ActiveOptions {
		if o.Key == key {
			return o, true
		}
	}
	return ActiveOption{}, false
}

// computeValues updates the derived values: portfolio value, total value and
// unrealized gains. Tickers are visited in order so that the sums are
// reproducible digit for digit.
func (s *State) computeValues() {
	value, unrealized := decimal.Zero, decimal.Zero
	for _, t := range s.Tickers() {
		if v, ok := s.MarketValue(t); ok {
			value = value.Add(v)
		}
		if u, ok := s.Unrealized(t); ok {
			unrealized = unrealized.Add(u)
		}
	}
	s.PortfolioValue = value
	s.TotalValue = value.Add(s.Cash)
	s.UnrealizedGains = unrealized
}

// clone returns a deep copy of s.
func (s *State) clone() *State {
	c := *s
	c.Holdings = maps.Clone(s.Holdings)
	c.CostBasis = maps.Clone(s.CostBasis)
	c.LatestPrices = maps.Clone(s.LatestPrices)
	c.ActiveOptions = slices.Clone(s.ActiveOptions)
	c.Journal = make(map[string][]InfoEntry, len(s.Journal))
	for k, v := range s.Journal {
		c.Journal[k] = slices.Clone(v)
	}
	c.Warnings = slices.Clone(s.Warnings)
	return &c
}

// Err returns the strict replay warnings joined in a single error, or nil.
func (s *State) Err() error {
	if len(s.Warnings) == 0 {
		return nil
	}
	errs := make([]error, len(s.Warnings))
	for i, w := range s.Warnings {
		errs[i] = w
	}
	return errors.Join(errs...)
}

// WarningCode classifies a data quality problem found while replaying.
type WarningCode string

const (
	WarnUnknownEventType  WarningCode = "unknown_event_type"
	WarnMissingTicker     WarningCode = "missing_ticker"
	WarnNonPositiveShares WarningCode = "non_positive_shares"
	WarnOversold          WarningCode = "oversold"
	WarnUnmatchedOption   WarningCode = "unmatched_option"
	WarnDuplicateOption   WarningCode = "duplicate_option_key"
	WarnCashFlagMismatch  WarningCode = "cash_flag_mismatch"
	WarnCashRuleMismatch  WarningCode = "cash_rule_mismatch"
	WarnOutOfOrder        WarningCode = "out_of_order"
	WarnMalformedField    WarningCode = "malformed_field"
)

// Warning is a data quality problem that a lenient replay silently absorbs.
type Warning struct {
	Code    WarningCode `json:"code"`
	EventID int64       `json:"event_id"`
	Message string      `json:"message"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("event %d: %s: %s", w.EventID, w.Code, w.Message)
}
