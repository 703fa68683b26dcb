package folio

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/etnz/folio/date"
)

func modificationEvents() []Event {
	return []Event{
		ev(1, at(1), deposit(10000)),
		ev(2, at(2), buy("AAA", 10, 100)),
		ev(3, at(3), sell("AAA", 4, 150, 200)),
		ev(4, at(4), openOption("BBB", "", 300, date.Date{})),
		ev(5, at(5), terminal(TypeOptionExpire, OptionTerminal{OpenEventID: 4, Profit: D(300)})),
		ev(6, at(6), NewDraft(TypeDividend, Dividend{Symbol: "AAA", Amount: D(12)})),
	}
}

func TestApplyModifications(t *testing.T) {
	t.Run("remove ticker", func(t *testing.T) {
		got := ApplyModifications(modificationEvents(), RemoveTicker{Ticker: "AAA"})
		if !slices.Equal(ids(got), []int64{1, 2, 3}) {
			t.Fatalf("ids = %v, want [1 2 3] after the renumbering", ids(got))
		}
		if term := got[2].Data.(OptionTerminal); term.OpenEventID != 2 {
			t.Errorf("OpenEventID = %d, want 2: it follows the renumbered open", term.OpenEventID)
		}
		s := Reconstruct(StartingState{}, got, Strict())
		if len(s.Warnings) != 0 || len(s.ActiveOptions) != 0 || !s.Cash.Equal(D(10300)) {
			t.Errorf("Cash = %v, ActiveOptions = %v, Warnings = %v", s.Cash, s.ActiveOptions, s.Warnings)
		}
	})

	t.Run("remove ticker of terminals without a ticker", func(t *testing.T) {
		events := append(modificationEvents(),
			ev(7, at(7), NewDraft(TypeOptionOpen, OptionOpen{Symbol: "BBB", Contracts: 1, Premium: D(50), LegacyUUID: "l1"})),
			ev(8, at(8), terminal(TypeOptionClose, OptionTerminal{LegacyUUID: "l1", Profit: D(20), CloseCost: D(30)})),
		)
		got := ApplyModifications(events, RemoveTicker{Ticker: "bbb"})
		if !slices.Equal(ids(got), []int64{1, 2, 3, 4}) {
			t.Fatalf("ids = %v, want the AAA events and the deposit", ids(got))
		}
		s := Reconstruct(StartingState{}, got, Strict())
		if len(s.Warnings) != 0 || !s.YTDOptionIncome.IsZero() {
			t.Errorf("YTDOptionIncome = %v, Warnings = %v", s.YTDOptionIncome, s.Warnings)
		}
	})

	t.Run("scale ticker of a terminal without a ticker", func(t *testing.T) {
		got := ApplyModifications(modificationEvents(), ScaleTicker{Ticker: "BBB", Factor: D(2)})
		if term := got[4].Data.(OptionTerminal); !term.Profit.Equal(D(600)) {
			t.Errorf("terminal profit = %v, want 600", term.Profit)
		}
		s := Reconstruct(StartingState{}, got, Strict())
		if len(s.Warnings) != 0 || !s.YTDOptionIncome.Equal(D(600)) || !s.Cash.Equal(D(10000-1000+600+600+12)) {
			t.Errorf("YTDOptionIncome = %v, Cash = %v, Warnings = %v", s.YTDOptionIncome, s.Cash, s.Warnings)
		}
		if aaa := got[1].Data.(Trade); !aaa.Shares.Equal(Q(10)) {
			t.Errorf("scaling BBB changed the AAA buy: %+v", aaa)
		}
	})

	t.Run("remove an open", func(t *testing.T) {
		got := ApplyModifications(modificationEvents(), RemoveEvent{EventID: 4})
		if len(got) != 5 {
			t.Fatalf("len = %d, want 5", len(got))
		}
		if term := got[3].Data.(OptionTerminal); term.OpenEventID != 0 {
			t.Errorf("OpenEventID = %d, want 0 once the open is removed", term.OpenEventID)
		}
	})

	t.Run("scale ticker", func(t *testing.T) {
		got := ApplyModifications(modificationEvents(), ScaleTicker{Ticker: "AAA", Factor: D(2)})
		p := got[1].Data.(Trade)
		if !p.Shares.Equal(Q(20)) || !p.Total.Equal(D(2000)) || !p.Price.Equal(D(100)) || !got[1].CashDelta.Equal(D(-2000)) {
			t.Errorf("scaled buy = %+v, cash %v", p, got[1].CashDelta)
		}
		s := Reconstruct(StartingState{}, got, Strict())
		if !s.Holdings["AAA"].Equal(Q(12)) || !s.YTDTradingGains.Equal(D(400)) || !s.YTDDividends.Equal(D(24)) {
			t.Errorf("Holdings = %v, YTDTradingGains = %v, YTDDividends = %v", s.Holdings, s.YTDTradingGains, s.YTDDividends)
		}
		if len(s.Warnings) != 0 {
			t.Errorf("Warnings = %v", s.Warnings)
		}
	})

	t.Run("reprice trade", func(t *testing.T) {
		got := ApplyModifications(modificationEvents(), RepriceTrade{EventID: 3, Price: D(160)})
		p := got[2].Data.(Trade)
		if !p.Total.Equal(D(640)) || !p.GainLoss.Equal(D(240)) || !got[2].CashDelta.Equal(D(640)) {
			t.Errorf("repriced sell = %+v, cash %v", p, got[2].CashDelta)
		}
	})

	t.Run("add trade", func(t *testing.T) {
		got := ApplyModifications(modificationEvents(), AddTrade{
			Timestamp: at(2).Add(time.Hour),
			Action:    Buy,
			Ticker:    "ccc",
			Shares:    D(5),
			Price:     D(20),
		})
		if !slices.Equal(ids(got), []int64{1, 2, 3, 4, 5, 6, 7}) {
			t.Fatalf("ids = %v", ids(got))
		}
		if got[2].Ticker() != "CCC" || !got[2].CashDelta.Equal(D(-100)) || got[2].Notes != "hypothetical trade" {
			t.Errorf("added trade = %+v", got[2])
		}
		if term := got[5].Data.(OptionTerminal); term.OpenEventID != 5 {
			t.Errorf("OpenEventID = %d, want 5", term.OpenEventID)
		}
		s := Reconstruct(StartingState{}, got, Strict())
		if len(s.Warnings) != 0 || !s.Holdings["CCC"].Equal(Q(5)) {
			t.Errorf("Holdings = %v, Warnings = %v", s.Holdings, s.Warnings)
		}
	})

	t.Run("input is not changed", func(t *testing.T) {
		events := modificationEvents()
		ApplyModifications(events, ScaleTicker{Ticker: "AAA", Factor: D(3)}, RemoveEvent{EventID: 1})
		if len(events) != 6 || !events[1].Data.(Trade).Shares.Equal(Q(10)) {
			t.Errorf("ApplyModifications() changed its input: %v", events)
		}
	})
}

func TestModifications_JSON(t *testing.T) {
	mods := Modifications{
		RemoveTicker{Ticker: "AAA"},
		ScaleTicker{Ticker: "BBB", Factor: D(1.5)},
		RepriceTrade{EventID: 3, Price: D(10)},
	}
	b, err := json.Marshal(mods)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	want := `[{"type":"remove_ticker","ticker":"AAA"},{"type":"scale_ticker","ticker":"BBB","factor":1.5},{"type":"reprice_trade","event_id":3,"price":10}]`
	if string(b) != want {
		t.Errorf("json.Marshal() =\n%s\nwant\n%s", b, want)
	}

	m, err := DecodeModification([]byte(`{"type":"add_trade","timestamp":"2025-01-02T10:00:00Z","action":"sell","ticker":"aaa","shares":1,"price":2}`))
	if err != nil {
		t.Fatalf("DecodeModification() failed: %v", err)
	}
	if add, ok := m.(AddTrade); !ok || add.Action != Sell || add.Ticker != "AAA" {
		t.Errorf("DecodeModification() = %#v", m)
	}

	for _, bad := range []string{`{"type":"rename_ticker"}`, `{"type":"remove_event","event_id":"one"}`, `[]`} {
		if _, err := DecodeModification([]byte(bad)); err == nil {
			t.Errorf("DecodeModification(%s) succeeded", bad)
		}
	}
}
