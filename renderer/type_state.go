package renderer

import (
	"maps"
	"slices"

	"github.com/etnz/folio"
)

// State is the view of a reconstructed state. Amounts are Money so that the
// templates only call their String or SignedString methods.
type State struct {
	Title           string         `json:"title"`
	AsOf            string         `json:"asOf,omitempty"`
	Ticker          string         `json:"ticker,omitempty"`
	Cash            folio.Money    `json:"cash"`
	PortfolioValue  folio.Money    `json:"portfolioValue"`
	TotalValue      folio.Money    `json:"totalValue"`
	UnrealizedGains folio.Money    `json:"unrealizedGains"`
	Withdrawals     folio.Money    `json:"withdrawals"`
	EventsProcessed int            `json:"eventsProcessed"`
	LastEventID     int64          `json:"lastEventId"`
	Holdings        []StateHolding `json:"holdings"`
	Options         []StateOption  `json:"options"`
	Income          StateIncome    `json:"income"`
	Journal         []StateJournal `json:"journal"`
	Warnings        []string       `json:"warnings,omitempty"`
}

// StateHolding is one line of the holdings table.
type StateHolding struct {
	Ticker      string         `json:"ticker"`
	Shares      folio.Quantity `json:"shares"`
	AvgPrice    folio.Money    `json:"avgPrice"`
	CostBasis   folio.Money    `json:"costBasis"`
	Price       string         `json:"price"`
	MarketValue string         `json:"marketValue"`
	Unrealized  string         `json:"unrealized"`
}

// StateOption is one line of the active options table.
type StateOption struct {
	Key        string      `json:"key"`
	Ticker     string      `json:"ticker"`
	Strategy   string      `json:"strategy"`
	Strike     folio.Money `json:"strike"`
	Expiration string      `json:"expiration"`
	Contracts  int64       `json:"contracts"`
	Premium    folio.Money `json:"premium"`
}

// StateIncome is the income breakdown.
type StateIncome struct {
	Total        folio.Money `json:"total"`
	TradingGains folio.Money `json:"tradingGains"`
	OptionIncome folio.Money `json:"optionIncome"`
	Dividends    folio.Money `json:"dividends"`
}

// StateJournal is one note, goal or strategy.
type StateJournal struct {
	Category string `json:"category"`
	EventID  int64  `json:"eventId"`
	Date     string `json:"date"`
	Text     string `json:"text"`
}

// NewState returns the view of s, amounts in currency.
func NewState(title string, s *folio.State, currency string) *State {
	v := &State{
		Title:           title,
		Cash:            folio.M(s.Cash, currency),
		PortfolioValue:  folio.M(s.PortfolioValue, currency),
		TotalValue:      folio.M(s.TotalValue, currency),
		UnrealizedGains: folio.M(s.UnrealizedGains, currency),
		Withdrawals:     folio.M(s.Withdrawals, currency),
		EventsProcessed: s.EventsProcessed,
		LastEventID:     s.LastEventID,
		Holdings:        make([]StateHolding, 0, len(s.Holdings)),
		Options:         make([]StateOption, 0, len(s.ActiveOptions)),
		Income: StateIncome{
			Total:        folio.M(s.YTDIncome, currency),
			TradingGains: folio.M(s.YTDTradingGains, currency),
			OptionIncome: folio.M(s.YTDOptionIncome, currency),
			Dividends:    folio.M(s.YTDDividends, currency),
		},
	}
	if !s.LastTimestamp.IsZero() {
		v.AsOf = s.LastTimestamp.Format("2006-01-02 15:04")
	}

	for _, t := range s.Tickers() {
		cb := s.CostBasis[t]
		h := StateHolding{
			Ticker:      t,
			Shares:      s.Holdings[t],
			AvgPrice:    folio.M(cb.AvgPrice, currency),
			CostBasis:   folio.M(cb.TotalCost, currency),
			Price:       "-",
			MarketValue: "-",
			Unrealized:  "-",
		}
		if p, ok := s.LatestPrices[t]; ok {
			h.Price = folio.M(p, currency).String()
		}
		if mv, ok := s.MarketValue(t); ok {
			h.MarketValue = folio.M(mv, currency).String()
		}
		if u, ok := s.Unrealized(t); ok {
			h.Unrealized = folio.M(u, currency).SignedString()
		}
		v.Holdings = append(v.Holdings, h)
	}

	for _, o := range s.ActiveOptions {
		exp := o.Expiration.String()
		if exp == "" {
			exp = "-"
		}
		v.Options = append(v.Options, StateOption{
			Key:        o.Key,
			Ticker:     o.Ticker,
			Strategy:   cell(o.Strategy),
			Strike:     folio.M(o.Strike, currency),
			Expiration: exp,
			Contracts:  o.Contracts,
			Premium:    folio.M(o.Premium, currency),
		})
	}

	for _, category := range slices.Sorted(maps.Keys(s.Journal)) {
		for _, entry := range s.Journal[category] {
			v.Journal = append(v.Journal, StateJournal{
				Category: cell(category),
				EventID:  entry.EventID,
				Date:     entry.Timestamp.Format("2006-01-02"),
				Text:     cell(entry.Text),
			})
		}
	}

	for _, w := range s.Warnings {
		v.Warnings = append(v.Warnings, w.Error())
	}
	return v
}
