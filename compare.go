package folio

import (
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

// Projector projects a state into the future.
type Projector interface {
	Project(s *State) (Projection, error)
}

// Projection is a projected total value.
type Projection struct {
	Years int             `json:"years"`
	Value decimal.Decimal `json:"value"`
}

// GrowthProjector compounds the total value at a fixed annual return.
type GrowthProjector struct {
	AnnualReturn decimal.Decimal
	Years        int
}

func (g GrowthProjector) Project(s *State) (Projection, error) {
	if g.Years < 0 {
		return Projection{}, fmt.Errorf("invalid projection horizon %d", g.Years)
	}
	growth := decimal.NewFromInt(1).Add(g.AnnualReturn).Pow(decimal.NewFromInt(int64(g.Years)))
	return Projection{Years: g.Years, Value: s.TotalValue.Mul(growth).Round(2)}, nil
}

// HoldingDelta is the change of a holding from history A to history B.
type HoldingDelta struct {
	Ticker string   `json:"ticker"`
	A      Quantity `json:"a"`
	B      Quantity `json:"b"`
	Delta  Quantity `json:"delta"`
}

// DivergenceKind classifies a difference between two event sequences.
type DivergenceKind string

const (
	OnlyInA  DivergenceKind = "only_in_a"
	OnlyInB  DivergenceKind = "only_in_b"
	Modified DivergenceKind = "modified"
)

// Divergence is an event present in a single history, or present in both
// with different contents.
type Divergence struct {
	Kind DivergenceKind `json:"kind"`
	A    *Event         `json:"a,omitempty"`
	B    *Event         `json:"b,omitempty"`
}

// Comparison is the difference between two histories, always B minus A.
type Comparison struct {
	A, B           string
	StateA, StateB *State
	Holdings       []HoldingDelta
	Cash           decimal.Decimal
	TotalValue     decimal.Decimal
	Income         decimal.Decimal
	Divergences    []Divergence
	// Projections are only set when a Projector was given.
	ProjectionA, ProjectionB *Projection
}

// Compare reconstructs histories a and b and reports their differences.
// "" and "reality" name the real log. proj may be nil.
func (h *Histories) Compare(a, b string, proj Projector) (Comparison, error) {
	if isReality(a) {
		a = Reality
	}
	if isReality(b) {
		b = Reality
	}
	eventsA, err := h.Events(a)
	if err != nil {
		return Comparison{}, err
	}
	eventsB, err := h.Events(b)
	if err != nil {
		return Comparison{}, err
	}
	c := CompareEvents(h.start, eventsA, eventsB)
	c.A, c.B = a, b
	if proj != nil {
		pa, err := proj.Project(c.StateA)
		if err != nil {
			return Comparison{}, fmt.Errorf("cannot project %s: %w", a, err)
		}
		pb, err := proj.Project(c.StateB)
		if err != nil {
			return Comparison{}, fmt.Errorf("cannot project %s: %w", b, err)
		}
		c.ProjectionA, c.ProjectionB = &pa, &pb
	}
	return c, nil
}

// CompareEvents reconstructs both event sequences over start and reports
// their differences.
func CompareEvents(start StartingState, a, b []Event) Comparison {
	sa, sb := Reconstruct(start, a), Reconstruct(start, b)
	c := Comparison{
		StateA:      sa,
		StateB:      sb,
		Cash:        sb.Cash.Sub(sa.Cash),
		TotalValue:  sb.TotalValue.Sub(sa.TotalValue),
		Income:      sb.YTDIncome.Sub(sa.YTDIncome),
		Divergences: Diverge(a, b),
	}
	tickers := maps.Clone(sa.Holdings)
	maps.Copy(tickers, sb.Holdings)
	for _, t := range slices.Sorted(maps.Keys(tickers)) {
		qa, qb := sa.Holdings[t], sb.Holdings[t]
		if qa.Equal(qb) {
			continue
		}
		c.Holdings = append(c.Holdings, HoldingDelta{Ticker: t, A: qa, B: qb, Delta: qb.Sub(qa)})
	}
	return c
}

// fingerprint identifies an event by its contents, ignoring its id.
func fingerprint(e Event) string {
	e.ID = 0
	b, err := e.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s/%s/%v", e.Type, e.Timestamp, e.Data)
	}
	return string(b)
}

// Diverge aligns two event sequences on their longest common subsequence of
// event contents and returns the events left out of it. An event removed
// from A and one added in B at the same place, with the same type and
// timestamp, are reported as a single modified event.
func Diverge(a, b []Event) []Divergence {
	fa := make([]string, len(a))
	for i, e := range a {
		fa[i] = fingerprint(e)
	}
	fb := make([]string, len(b))
	for i, e := range b {
		fb[i] = fingerprint(e)
	}

	// common prefix and suffix are matched without the table.
	lo := 0
	for lo < len(fa) && lo < len(fb) && fa[lo] == fb[lo] {
		lo++
	}
	hiA, hiB := len(fa), len(fb)
	for hiA > lo && hiB > lo && fa[hiA-1] == fb[hiB-1] {
		hiA--
		hiB--
	}
	ma, mb := fa[lo:hiA], fb[lo:hiB]

	// lcs[i][j] is the LCS length of ma[i:] and mb[j:].
	lcs := make([][]int32, len(ma)+1)
	for i := range lcs {
		lcs[i] = make([]int32, len(mb)+1)
	}
	for i := len(ma) - 1; i >= 0; i-- {
		for j := len(mb) - 1; j >= 0; j-- {
			if ma[i] == mb[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var out []Divergence
	var onlyA, onlyB []int
	flush := func() {
		paired := make(map[int]bool)
		for _, i := range onlyA {
			ea := a[i]
			match := -1
			for _, j := range onlyB {
				if !paired[j] && b[j].Type == ea.Type && b[j].Timestamp.Equal(ea.Timestamp) {
					match = j
					break
				}
			}
			if match < 0 {
				out = append(out, Divergence{Kind: OnlyInA, A: &ea})
				continue
			}
			paired[match] = true
			eb := b[match]
			out = append(out, Divergence{Kind: Modified, A: &ea, B: &eb})
		}
		for _, j := range onlyB {
			if !paired[j] {
				eb := b[j]
				out = append(out, Divergence{Kind: OnlyInB, B: &eb})
			}
		}
		onlyA, onlyB = onlyA[:0], onlyB[:0]
	}

	i, j := 0, 0
	for i < len(ma) || j < len(mb) {
		switch {
		case i < len(ma) && j < len(mb) && ma[i] == mb[j]:
			flush()
			i++
			j++
		case j >= len(mb) || (i < len(ma) && lcs[i+1][j] >= lcs[i][j+1]):
			onlyA = append(onlyA, lo+i)
			i++
		default:
			onlyB = append(onlyB, lo+j)
			j++
		}
	}
	flush()
	return out
}
