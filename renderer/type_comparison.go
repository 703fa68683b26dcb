package renderer

import (
	"fmt"

	"github.com/etnz/folio"
)

// Comparison is the view of the differences between two histories.
type Comparison struct {
	A           string              `json:"a"`
	B           string              `json:"b"`
	TotalA      folio.Money         `json:"totalA"`
	TotalB      folio.Money         `json:"totalB"`
	Cash        folio.Money         `json:"cash"`
	TotalValue  folio.Money         `json:"totalValue"`
	Income      folio.Money         `json:"income"`
	Holdings    []ComparisonHolding `json:"holdings"`
	Divergences []ComparisonEvent   `json:"divergences"`
	// Projection is empty when no projection was made.
	Projection string `json:"projection,omitempty"`
}

// ComparisonHolding is one line of the holding deltas table.
type ComparisonHolding struct {
	Ticker string         `json:"ticker"`
	A      folio.Quantity `json:"a"`
	B      folio.Quantity `json:"b"`
	Delta  string         `json:"delta"`
}

// ComparisonEvent is one divergence.
type ComparisonEvent struct {
	Kind    string `json:"kind"`
	A       string `json:"a"`
	B       string `json:"b"`
	Time    string `json:"time"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// NewComparison returns the view of c, amounts in currency.
func NewComparison(c folio.Comparison, currency string) *Comparison {
	v := &Comparison{
		A:           c.A,
		B:           c.B,
		TotalA:      folio.M(c.StateA.TotalValue, currency),
		TotalB:      folio.M(c.StateB.TotalValue, currency),
		Cash:        folio.M(c.Cash, currency),
		TotalValue:  folio.M(c.TotalValue, currency),
		Income:      folio.M(c.Income, currency),
		Holdings:    make([]ComparisonHolding, 0, len(c.Holdings)),
		Divergences: make([]ComparisonEvent, 0, len(c.Divergences)),
	}
	for _, h := range c.Holdings {
		delta := h.Delta.String()
		if h.Delta.IsPositive() {
			delta = "+" + delta
		}
		v.Holdings = append(v.Holdings, ComparisonHolding{Ticker: h.Ticker, A: h.A, B: h.B, Delta: delta})
	}
	for _, d := range c.Divergences {
		row := ComparisonEvent{Kind: string(d.Kind), A: "-", B: "-"}
		e := d.A
		if d.A != nil {
			row.A = fmt.Sprintf("#%d", d.A.ID)
		}
		if d.B != nil {
			row.B = fmt.Sprintf("#%d", d.B.ID)
			e = d.B
		}
		row.Time = e.Timestamp.Format("2006-01-02 15:04")
		row.Type = string(e.Type)
		row.Summary = cell(Summary(*e, currency))
		v.Divergences = append(v.Divergences, row)
	}
	if c.ProjectionA != nil && c.ProjectionB != nil {
		a, b := folio.M(c.ProjectionA.Value, currency), folio.M(c.ProjectionB.Value, currency)
		delta := folio.M(c.ProjectionB.Value.Sub(c.ProjectionA.Value), currency)
		v.Projection = fmt.Sprintf("In %d years: %s for %s, %s for %s (%s).", c.ProjectionA.Years, a, c.A, b, c.B, delta.SignedString())
	}
	return v
}

// Histories is the view of the list of alternate histories.
type Histories struct {
	Rows []HistoryRow `json:"rows"`
}

// HistoryRow is one line of the histories table.
type HistoryRow struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Created       string `json:"created"`
	Events        int    `json:"events"`
	Modifications string `json:"modifications"`
	Status        string `json:"status"`
}

// NewHistories returns the view of list.
func NewHistories(list []folio.History) *Histories {
	v := &Histories{Rows: make([]HistoryRow, 0, len(list))}
	for _, h := range list {
		kinds := ""
		for i, m := range h.Modifications {
			if i > 0 {
				kinds += ", "
			}
			kinds += m.Kind()
		}
		v.Rows = append(v.Rows, HistoryRow{
			ID:            h.ID,
			Name:          cell(h.Name),
			Description:   cell(h.Description),
			Created:       h.CreatedAt.Format("2006-01-02 15:04"),
			Events:        h.EventCount,
			Modifications: kinds,
			Status:        h.Status,
		})
	}
	return v
}
