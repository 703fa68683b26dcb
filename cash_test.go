package folio

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCashEffect(t *testing.T) {
	sell := NewTrade(Sell, "AAA", D(4), D(150))
	testCases := []struct {
		name string
		typ  EventType
		data Payload
		want decimal.Decimal
	}{
		{"buy", TypeTrade, NewTrade(Buy, "AAA", D(10), D(100)), D(-1000)},
		{"sell", TypeTrade, sell, D(600)},
		{"sell by pointer", TypeTrade, &sell, D(600)},
		{"collected premium", TypeOptionOpen, OptionOpen{Symbol: "AAA", Premium: D(300)}, D(300)},
		{"paid premium", TypeOptionOpen, OptionOpen{Symbol: "AAA", Premium: D(-120)}, D(-120)},
		{"close", TypeOptionClose, OptionTerminal{CloseCost: D(80)}, D(-80)},
		{"expire", TypeOptionExpire, OptionTerminal{Profit: D(300)}, decimal.Zero},
		{"assign", TypeOptionAssign, OptionTerminal{Profit: D(300), CloseCost: D(5)}, decimal.Zero},
		{"dividend", TypeDividend, Dividend{Symbol: "BBB", Amount: D(12.5)}, D(12.5)},
		{"deposit", TypeDeposit, CashFlow{Amount: D(-500)}, D(500)},
		{"withdrawal", TypeWithdrawal, CashFlow{Amount: D(200)}, D(-200)},
		{"adjustment", TypeAdjustment, CashFlow{Amount: D(-3)}, D(-3)},
		{"price", TypePriceUpdate, PriceUpdate{Symbol: "AAA", Price: D(10)}, decimal.Zero},
		{"note", TypeNote, Info{Text: "hello"}, decimal.Zero},
		{"mismatched payload", TypeDividend, CashFlow{Amount: D(10)}, decimal.Zero},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CashEffect(tc.typ, tc.data); !got.Equal(tc.want) {
				t.Errorf("CashEffect() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewDraft_Normalized(t *testing.T) {
	d := NewDraft(TypePriceUpdate, PriceUpdate{Symbol: "AAA", Price: D(10)})
	if d.AffectsCash || !d.CashDelta.IsZero() {
		t.Errorf("price draft = %+v, want no cash effect", d)
	}

	e := Event{Type: TypeDeposit, Data: CashFlow{Amount: D(100)}}
	// no flag and no delta agree with each other, not with the rule table.
	if !e.CashConsistent() || CashEffect(e.Type, e.Data).Equal(e.CashDelta) {
		t.Errorf("unnormalized deposit = %+v", e)
	}
	if flagged := (Event{Type: TypeDeposit, AffectsCash: true}); flagged.CashConsistent() {
		t.Error("a cash flag without a delta is cash consistent")
	}
	e = e.Normalized()
	if !e.AffectsCash || !e.CashDelta.Equal(D(100)) || !e.CashConsistent() {
		t.Errorf("Normalized() = %+v", e)
	}
}
