package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etnz/folio"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type setupCmd struct {
	cash     decimalFlag
	holdings listFlag
	date     string
	from     string
}

func (*setupCmd) Name() string     { return "setup" }
func (*setupCmd) Synopsis() string { return "write the starting state the replay begins from" }
func (*setupCmd) Usage() string {
	return `setup -cash <amount> [-holding <ticker>=<shares>@<cost>]... [-date <date>]
setup -from <file.json>

  Writes the starting state: the cash and holdings owned before the first event.
  A new setup overwrites the previous one and changes every reconstructed state.

Usage Examples:
$ pf setup -cash 10000 -holding AAPL=10@150 -date 2025-01-01
`
}

func (c *setupCmd) SetFlags(f *flag.FlagSet) {
	*c = setupCmd{}
	f.Var(&c.cash, "cash", "Starting cash")
	f.Var(&c.holdings, "holding", "Initial holding as <ticker>=<shares>@<cost per share>, repeatable")
	f.StringVar(&c.date, "date", "", "Starting date (default now)")
	f.StringVar(&c.from, "from", "", "Read the starting state from a JSON file instead")
}

func (c *setupCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := c.starting()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := mustApp()
	if a == nil {
		return status
	}
	path := a.cfg.StartingStatePath()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Warning: overwriting %s, previously reconstructed states are invalid.\n", path)
	}
	if err := folio.SaveStartingState(path, start); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving starting state: %v\n", err)
		return subcommands.ExitFailure
	}
	a.log.Info().Str("cash", start.Cash.String()).Int("holdings", len(start.Holdings)).Msg("starting state written")
	fmt.Printf("Starting state written to %s\n", path)
	return subcommands.ExitSuccess
}

func (c *setupCmd) starting() (folio.StartingState, error) {
	if c.from != "" {
		b, err := os.ReadFile(c.from)
		if err != nil {
			return folio.StartingState{}, err
		}
		return folio.DecodeStartingState(b)
	}
	if !c.cash.set && len(c.holdings) == 0 {
		return folio.StartingState{}, fmt.Errorf("-cash, -holding or -from is required")
	}
	start := folio.StartingState{
		Cash:         c.cash.Decimal,
		Holdings:     make(map[string]folio.InitialHolding),
		StartingDate: time.Now().UTC(),
	}
	if c.date != "" {
		ts, err := folio.ParseTimestamp(c.date)
		if err != nil {
			return start, err
		}
		start.StartingDate = ts
	}
	for _, h := range c.holdings {
		ticker, holding, err := parseHolding(h)
		if err != nil {
			return start, err
		}
		start.Holdings[ticker] = holding
	}
	return start, nil
}

// parseHolding parses <ticker>=<shares>@<cost>.
func parseHolding(s string) (string, folio.InitialHolding, error) {
	ticker, rest, ok := strings.Cut(s, "=")
	if !ok {
		return "", folio.InitialHolding{}, fmt.Errorf("invalid holding %q, want <ticker>=<shares>@<cost>", s)
	}
	sharesStr, costStr, ok := strings.Cut(rest, "@")
	if !ok {
		return "", folio.InitialHolding{}, fmt.Errorf("invalid holding %q, want <ticker>=<shares>@<cost>", s)
	}
	shares, err := decimal.NewFromString(sharesStr)
	if err != nil {
		return "", folio.InitialHolding{}, fmt.Errorf("invalid shares in holding %q", s)
	}
	cost, err := decimal.NewFromString(costStr)
	if err != nil {
		return "", folio.InitialHolding{}, fmt.Errorf("invalid cost in holding %q", s)
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", folio.InitialHolding{}, fmt.Errorf("missing ticker in holding %q", s)
	}
	return ticker, folio.InitialHolding{Shares: folio.Q(shares), CostBasisPerShare: cost}, nil
}
