package folio

import "github.com/shopspring/decimal"

// CashEffect returns the cash delta an event of type t with payload p should
// carry. It is the rule table callers use to keep affects_cash and
// cash_delta consistent; nothing enforces it at append time.
func CashEffect(t EventType, p Payload) decimal.Decimal {
	switch v := normPayload(p).(type) {
	case Trade:
		if t != TypeTrade {
			return decimal.Zero
		}
		if v.IsSell() {
			return v.Total.Abs()
		}
		return v.Total.Abs().Neg()
	case OptionOpen:
		if t != TypeOptionOpen {
			return decimal.Zero
		}
		// premium is signed, a debit spread carries a negative premium.
		return v.Premium
	case OptionTerminal:
		if t == TypeOptionClose {
			return v.CloseCost.Abs().Neg()
		}
		// expirations keep the full premium and assignments are followed
		// by the TRADE recording the shares.
		return decimal.Zero
	case Dividend:
		if t != TypeDividend {
			return decimal.Zero
		}
		return v.Amount
	case CashFlow:
		switch t {
		case TypeDeposit:
			return v.Amount.Abs()
		case TypeWithdrawal:
			return v.Amount.Abs().Neg()
		case TypeAdjustment:
			return v.Amount
		}
	}
	return decimal.Zero
}

// Normalized returns a copy of e whose cash fields follow the rule table.
func (e Event) Normalized() Event {
	e.CashDelta = CashEffect(e.Type, e.Data)
	e.AffectsCash = !e.CashDelta.IsZero()
	return e
}
