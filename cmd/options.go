package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/google/subcommands"
)

// --- Option Open Command ---

type optionOpenCmd struct {
	ticker      string
	strategy    string
	strike      decimalFlag
	expiration  string
	contracts   int64
	premium     decimalFlag
	positionID  string
	manualClose bool
	draft       draftFlags
}

func (*optionOpenCmd) Name() string     { return "option-open" }
func (*optionOpenCmd) Synopsis() string { return "open an option position" }
func (*optionOpenCmd) Usage() string {
	return `option-open -s <ticker> -strike <price> -exp <date> -n <contracts> -premium <amount> [-strategy <name>] [-id <position id>] [-manual]

  Opens an option position. A positive premium is collected and credited to cash,
  a negative one is paid. A position id is generated unless -id is given.

Usage Examples:
$ pf option-open -s AAPL -strategy covered_call -strike 200 -exp 2025-03-21 -n 1 -premium 250
`
}

func (c *optionOpenCmd) SetFlags(f *flag.FlagSet) {
	*c = optionOpenCmd{}
	f.StringVar(&c.ticker, "s", "", "Underlying ticker")
	f.StringVar(&c.strategy, "strategy", "", "Strategy, e.g. covered_call or cash_secured_put")
	f.Var(&c.strike, "strike", "Strike price")
	f.StringVar(&c.expiration, "exp", "", "Expiration date (YYYY-MM-DD)")
	f.Int64Var(&c.contracts, "n", 1, "Number of contracts")
	f.Var(&c.premium, "premium", "Total premium, positive when collected")
	f.StringVar(&c.positionID, "id", "", "Position id")
	f.BoolVar(&c.manualClose, "manual", false, "Never expire this position automatically")
	c.draft.SetFlags(f)
}

func (c *optionOpenCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" || !c.premium.set || c.contracts <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var exp date.Date
	if c.expiration != "" {
		d, err := date.Parse(c.expiration)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing expiration: %v\n", err)
			return subcommands.ExitUsageError
		}
		exp = d
	}
	open := folio.OptionOpen{
		Symbol:      strings.ToUpper(c.ticker),
		Strategy:    c.strategy,
		Strike:      c.strike.Decimal,
		Expiration:  exp,
		Contracts:   c.contracts,
		Premium:     c.premium.Decimal,
		PositionID:  c.positionID,
		ManualClose: c.manualClose,
	}
	return appendDraft(&c.draft, folio.NewDraft(folio.TypeOptionOpen, open))
}

// --- Option Terminal Commands ---

// optionTerminalCmd appends OPTION_CLOSE, OPTION_EXPIRE or OPTION_ASSIGN
// events.
type optionTerminalCmd struct {
	typ         folio.EventType
	ticker      string
	positionID  string
	openEventID int64
	strike      decimalFlag
	profit      decimalFlag
	closeCost   decimalFlag
	draft       draftFlags
}

func (c *optionTerminalCmd) Name() string {
	switch c.typ {
	case folio.TypeOptionExpire:
		return "option-expire"
	case folio.TypeOptionAssign:
		return "option-assign"
	}
	return "option-close"
}

func (c *optionTerminalCmd) Synopsis() string {
	switch c.typ {
	case folio.TypeOptionExpire:
		return "record the expiration of an option position"
	case folio.TypeOptionAssign:
		return "record the assignment of an option position"
	}
	return "buy back an option position"
}

func (c *optionTerminalCmd) Usage() string {
	return fmt.Sprintf(`%s (-id <position id> | -open <event id>) -profit <amount> [-cost <amount>] [-s <ticker>]

  %s. The position is matched by its position id, or by the id
  of the event that opened it. The profit is counted as option income.
  Only option-close moves cash: -cost is debited.
  An assignment does not move shares: record the resulting trade with buy or sell.
`, c.Name(), c.Synopsis())
}

func (c *optionTerminalCmd) SetFlags(f *flag.FlagSet) {
	*c = optionTerminalCmd{typ: c.typ}
	f.StringVar(&c.ticker, "s", "", "Underlying ticker")
	f.StringVar(&c.positionID, "id", "", "Position id")
	f.Int64Var(&c.openEventID, "open", 0, "Id of the OPTION_OPEN event")
	f.Var(&c.strike, "strike", "Strike price")
	f.Var(&c.profit, "profit", "Realized option profit")
	if c.typ == folio.TypeOptionClose {
		f.Var(&c.closeCost, "cost", "Cost paid to close the position")
	}
	c.draft.SetFlags(f)
}

func (c *optionTerminalCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.positionID == "" && c.openEventID <= 0) || !c.profit.set {
		f.Usage()
		return subcommands.ExitUsageError
	}
	p := folio.OptionTerminal{
		Symbol:      strings.ToUpper(c.ticker),
		PositionID:  c.positionID,
		OpenEventID: c.openEventID,
		Strike:      c.strike.Decimal,
		Profit:      c.profit.Decimal,
		CloseCost:   c.closeCost.Decimal,
	}
	return appendDraft(&c.draft, folio.NewDraft(c.typ, p))
}
