package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// --- Trade Commands ---

type tradeCmd struct {
	action folio.TradeAction
	ticker string
	shares decimalFlag
	price  decimalFlag
	gain   decimalFlag
	draft  draftFlags
}

func (c *tradeCmd) Name() string { return strings.ToLower(string(c.action)) }
func (c *tradeCmd) Synopsis() string {
	if c.action == folio.Sell {
		return "sell shares to trim or close a position"
	}
	return "purchase shares to open or add to a position"
}
func (c *tradeCmd) Usage() string {
	if c.action == folio.Sell {
		return `sell -s <ticker> -q <shares> -p <price> [-gain <amount>] [-t <timestamp>] [-reason <reason>] [-notes <notes>] [-tags <tags>]

  Sells shares of a ticker. The proceeds are credited to the cash account.
  The realized gain is computed from the current average cost unless -gain is given.
`
	}
	return `buy -s <ticker> -q <shares> -p <price> [-t <timestamp>] [-reason <reason>] [-notes <notes>] [-tags <tags>]

  Purchases shares of a ticker. The total cost is debited from the cash account.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	*c = tradeCmd{action: c.action}
	f.StringVar(&c.ticker, "s", "", "Ticker")
	f.Var(&c.shares, "q", "Number of shares")
	f.Var(&c.price, "p", "Price per share")
	if c.action == folio.Sell {
		f.Var(&c.gain, "gain", "Realized gain, computed from the average cost by default")
	}
	c.draft.SetFlags(f)
}

func (c *tradeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || !c.shares.IsPositive() || !c.price.set || c.price.IsNegative() {
		f.Usage()
		return subcommands.ExitUsageError
	}
	trade := folio.NewTrade(c.action, c.ticker, c.shares.Decimal, c.price.Decimal)
	if c.action == folio.Sell {
		if c.gain.set {
			trade.GainLoss = c.gain.Decimal
		} else {
			gain, err := realizedGain(trade)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error computing realized gain: %v\n", err)
				return subcommands.ExitFailure
			}
			trade.GainLoss = gain
		}
	}
	return appendDraft(&c.draft, folio.NewDraft(folio.TypeTrade, trade))
}

// realizedGain is the gain of selling trade against the current weighted
// average cost.
func realizedGain(trade folio.Trade) (decimal.Decimal, error) {
	a, err := loadApp()
	if err != nil {
		return decimal.Decimal{}, err
	}
	s, err := a.store()
	if err != nil {
		return decimal.Decimal{}, err
	}
	start, err := a.start()
	if err != nil {
		return decimal.Decimal{}, err
	}
	events, err := s.Events()
	if err != nil {
		return decimal.Decimal{}, err
	}
	state := folio.Reconstruct(start, events, folio.ForTicker(trade.Symbol))
	cb, ok := state.CostBasis[trade.Symbol]
	if !ok {
		return trade.Total, nil
	}
	return trade.Total.Sub(trade.Shares.Price(cb.AvgPrice)), nil
}
