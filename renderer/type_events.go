package renderer

import (
	"fmt"
	"strings"

	"github.com/etnz/folio"
)

// Events is the view of a list of events.
type Events struct {
	Title string     `json:"title"`
	Rows  []EventRow `json:"rows"`
}

// EventRow is one line of the events table.
type EventRow struct {
	ID      int64  `json:"id"`
	Time    string `json:"time"`
	Type    string `json:"type"`
	Ticker  string `json:"ticker"`
	Summary string `json:"summary"`
	Cash    string `json:"cash"`
	Notes   string `json:"notes"`
}

// NewEvents returns the view of events, amounts in currency.
func NewEvents(title string, events []folio.Event, currency string) *Events {
	v := &Events{Title: title, Rows: make([]EventRow, 0, len(events))}
	for _, e := range events {
		v.Rows = append(v.Rows, NewEventRow(e, currency))
	}
	return v
}

// NewEventRow returns the table line of e.
func NewEventRow(e folio.Event, currency string) EventRow {
	return EventRow{
		ID:      e.ID,
		Time:    e.Timestamp.Format("2006-01-02 15:04"),
		Type:    string(e.Type),
		Ticker:  e.Ticker(),
		Summary: cell(Summary(e, currency)),
		Cash:    folio.M(e.CashDelta, currency).SignedString(),
		Notes:   cell(e.Notes),
	}
}

// Summary describes the payload of e in a few words.
func Summary(e folio.Event, currency string) string {
	switch p := e.Data.(type) {
	case folio.Trade:
		s := fmt.Sprintf("%s %s @ %s", p.Action, p.Shares, folio.M(p.Price, currency))
		if !p.GainLoss.IsZero() {
			s += fmt.Sprintf(", gain %s", folio.M(p.GainLoss, currency).SignedString())
		}
		return s
	case folio.OptionOpen:
		parts := []string{}
		if p.Strategy != "" {
			parts = append(parts, p.Strategy)
		}
		parts = append(parts, fmt.Sprintf("%d × %s", p.Contracts, folio.M(p.Strike, currency)))
		if !p.Expiration.IsZero() {
			parts = append(parts, "exp "+p.Expiration.String())
		}
		parts = append(parts, "premium "+folio.M(p.Premium, currency).String())
		return strings.Join(parts, " ")
	case folio.OptionTerminal:
		return fmt.Sprintf("profit %s (%s)", folio.M(p.Profit, currency).SignedString(), strings.Join(p.OptionKeys(), ", "))
	case folio.Dividend:
		return folio.M(p.Amount, currency).String()
	case folio.CashFlow:
		if p.Description != "" {
			return p.Description
		}
		return folio.M(p.Amount, currency).String()
	case folio.PriceUpdate:
		return folio.M(p.Price, currency).String()
	case folio.Info:
		return p.Text
	}
	return ""
}

// cell escapes the characters that would break a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// Compaction is the view of a price compaction report.
type Compaction struct {
	Removed int             `json:"removed"`
	Days    []CompactionDay `json:"days"`
}

// CompactionDay is one line of the compaction table.
type CompactionDay struct {
	Day     string `json:"day"`
	Ticker  string `json:"ticker"`
	Removed int    `json:"removed"`
	Kept    string `json:"kept"`
}

// NewCompaction returns the view of r.
func NewCompaction(r folio.CompactionReport) *Compaction {
	v := &Compaction{Removed: r.Removed(), Days: make([]CompactionDay, 0, len(r.Days))}
	for _, d := range r.Days {
		v.Days = append(v.Days, CompactionDay{
			Day:     d.Day.String(),
			Ticker:  d.Ticker,
			Removed: d.Removed,
			Kept:    fmt.Sprintf("#%d, #%d", d.Kept[0], d.Kept[1]),
		})
	}
	return v
}
