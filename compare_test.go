package folio

import "testing"

func TestDiverge(t *testing.T) {
	base := modificationEvents()
	changed := ev(3, at(3), sell("AAA", 4, 160, 240))

	testCases := []struct {
		name string
		a, b []Event
		want []DivergenceKind
	}{
		{"identical", base, base, nil},
		{"unchanged copy", base, ApplyModifications(base, RemoveEvent{EventID: 99}), nil},
		{"removed", base, ApplyModifications(base, RemoveEvent{EventID: 6}), []DivergenceKind{OnlyInA}},
		{"added", base, append(append([]Event{}, base...), ev(7, at(7), deposit(5))), []DivergenceKind{OnlyInB}},
		{"modified", base, []Event{base[0], base[1], changed, base[3], base[4], base[5]}, []DivergenceKind{Modified}},
		{"removed and added", base[:2], []Event{base[0], ev(2, at(9), deposit(1))}, []DivergenceKind{OnlyInA, OnlyInB}},
		{"empty", nil, base[:2], []DivergenceKind{OnlyInB, OnlyInB}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Diverge(tc.a, tc.b)
			if len(got) != len(tc.want) {
				t.Fatalf("Diverge() = %v, want %v", got, tc.want)
			}
			for i, d := range got {
				if d.Kind != tc.want[i] {
					t.Errorf("Diverge()[%d].Kind = %s, want %s", i, d.Kind, tc.want[i])
				}
			}
		})
	}

	d := Diverge(base, []Event{base[0], base[1], changed, base[3], base[4], base[5]})[0]
	if d.A == nil || d.B == nil || d.A.ID != 3 || !d.B.Data.(Trade).Price.Equal(D(160)) {
		t.Errorf("Modified divergence = %+v", d)
	}
}

func TestCompareEvents(t *testing.T) {
	base := modificationEvents()
	c := CompareEvents(StartingState{}, base, ApplyModifications(base, ScaleTicker{Ticker: "AAA", Factor: D(2)}))

	if len(c.Holdings) != 1 {
		t.Fatalf("Holdings = %v, want the AAA delta only", c.Holdings)
	}
	if h := c.Holdings[0]; h.Ticker != "AAA" || !h.A.Equal(Q(6)) || !h.B.Equal(Q(12)) || !h.Delta.Equal(Q(6)) {
		t.Errorf("Holdings[0] = %+v", h)
	}
	// B - A: the extra buy, the extra sell and the extra dividend.
	if !c.Cash.Equal(D(-1000 + 600 + 12)) {
		t.Errorf("Cash = %v, want -388", c.Cash)
	}
	if !c.Income.Equal(D(212)) {
		t.Errorf("Income = %v, want 212", c.Income)
	}
	if len(c.Divergences) != 3 {
		t.Errorf("Divergences = %v, want the 3 scaled AAA events", c.Divergences)
	}
}

func TestHistories_Compare(t *testing.T) {
	h, _ := newTestHistories(t)
	hist, err := h.Create("no BBB", "", RemoveTicker{Ticker: "BBB"})
	if err != nil {
		t.Fatal(err)
	}

	c, err := h.Compare("", hist.ID, GrowthProjector{AnnualReturn: D(0.07), Years: 2})
	if err != nil {
		t.Fatalf("Compare() failed: %v", err)
	}
	if c.A != Reality || c.B != hist.ID {
		t.Errorf("A, B = %q, %q", c.A, c.B)
	}
	if !c.Cash.Equal(D(-300)) || !c.Income.Equal(D(-300)) {
		t.Errorf("Cash = %v, Income = %v, want -300 without the BBB premium", c.Cash, c.Income)
	}
	if len(c.Divergences) != 2 {
		t.Errorf("Divergences = %v, want the open and its expiration", c.Divergences)
	}
	if c.ProjectionA == nil || c.ProjectionB == nil {
		t.Fatal("Compare() with a projector returned no projection")
	}
	want, _ := GrowthProjector{AnnualReturn: D(0.07), Years: 2}.Project(c.StateA)
	if !c.ProjectionA.Value.Equal(want.Value) || c.ProjectionA.Years != 2 {
		t.Errorf("ProjectionA = %+v, want %+v", c.ProjectionA, want)
	}

	if _, err := h.Compare(Reality, "missing", nil); err == nil {
		t.Error("Compare() with a missing history succeeded")
	}
}

func TestGrowthProjector(t *testing.T) {
	p, err := GrowthProjector{AnnualReturn: D(0.07), Years: 2}.Project(&State{TotalValue: D(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Value.Equal(D(1144.9)) {
		t.Errorf("Project() = %v, want 1144.90", p.Value)
	}
	if _, err := (GrowthProjector{Years: -1}).Project(&State{}); err == nil {
		t.Error("Project() with a negative horizon succeeded")
	}
}
