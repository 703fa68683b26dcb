package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/folio"
	"github.com/google/subcommands"
)

// cashCmd appends DEPOSIT, WITHDRAWAL or ADJUSTMENT events.
type cashCmd struct {
	typ         folio.EventType
	amount      decimalFlag
	description string
	draft       draftFlags
}

func (c *cashCmd) Name() string {
	switch c.typ {
	case folio.TypeWithdrawal:
		return "withdraw"
	case folio.TypeAdjustment:
		return "adjust"
	}
	return "deposit"
}

func (c *cashCmd) Synopsis() string {
	switch c.typ {
	case folio.TypeWithdrawal:
		return "take cash out of the portfolio"
	case folio.TypeAdjustment:
		return "correct the cash balance by a signed amount"
	}
	return "add cash to the portfolio"
}

func (c *cashCmd) Usage() string {
	return fmt.Sprintf(`%s -a <amount> [-desc <description>] [-t <timestamp>] [-reason <reason>] [-notes <notes>] [-tags <tags>]

  %s.
`, c.Name(), c.Synopsis())
}

func (c *cashCmd) SetFlags(f *flag.FlagSet) {
	*c = cashCmd{typ: c.typ}
	f.Var(&c.amount, "a", "Amount")
	f.StringVar(&c.description, "desc", "", "Optional description")
	c.draft.SetFlags(f)
}

func (c *cashCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.amount.set || c.amount.IsZero() || (c.typ != folio.TypeAdjustment && c.amount.IsNegative()) {
		f.Usage()
		return subcommands.ExitUsageError
	}
	d := folio.NewDraft(c.typ, folio.CashFlow{Amount: c.amount.Decimal, Description: c.description})
	return appendDraft(&c.draft, d)
}
