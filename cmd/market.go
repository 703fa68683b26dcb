package cmd

import (
	"context"
	"flag"

	"github.com/etnz/folio"
	"github.com/google/subcommands"
)

// --- Dividend Command ---

type dividendCmd struct {
	ticker string
	amount decimalFlag
	draft  draftFlags
}

func (*dividendCmd) Name() string     { return "dividend" }
func (*dividendCmd) Synopsis() string { return "record a dividend payment" }
func (*dividendCmd) Usage() string {
	return `dividend -s <ticker> -a <amount> [-t <timestamp>] [-reason <reason>] [-notes <notes>] [-tags <tags>]

  Records a dividend. The amount is credited to the cash account and counted as income.
`
}

func (c *dividendCmd) SetFlags(f *flag.FlagSet) {
	*c = dividendCmd{}
	f.StringVar(&c.ticker, "s", "", "Ticker paying the dividend")
	f.Var(&c.amount, "a", "Total amount received")
	c.draft.SetFlags(f)
}

func (c *dividendCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || !c.amount.set {
		f.Usage()
		return subcommands.ExitUsageError
	}
	d := folio.NewDraft(folio.TypeDividend, folio.Dividend{Symbol: c.ticker, Amount: c.amount.Decimal})
	return appendDraft(&c.draft, d)
}

// --- Price Command ---

type priceCmd struct {
	ticker string
	price  decimalFlag
	draft  draftFlags
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "record the latest price of a ticker" }
func (*priceCmd) Usage() string {
	return `price -s <ticker> -p <price> [-t <timestamp>]

  Records a market price. Prices never move cash, they value the holdings.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	*c = priceCmd{}
	f.StringVar(&c.ticker, "s", "", "Ticker")
	f.Var(&c.price, "p", "Price per share")
	c.draft.SetFlags(f)
}

func (c *priceCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || !c.price.IsPositive() {
		f.Usage()
		return subcommands.ExitUsageError
	}
	d := folio.NewDraft(folio.TypePriceUpdate, folio.PriceUpdate{Symbol: c.ticker, Price: c.price.Decimal})
	return appendDraft(&c.draft, d)
}
