package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

type stateCmd struct {
	asOf    string
	ticker  string
	strict  bool
	history string
	json    bool
}

func (*stateCmd) Name() string     { return "state" }
func (*stateCmd) Synopsis() string { return "reconstruct the portfolio from the event log" }
func (*stateCmd) Usage() string {
	return `state [-as-of <timestamp>] [-s <ticker>] [-strict] [-h <history>] [-json]

  Replays the starting state and the events and reports cash, holdings, cost basis,
  active options, income and journal. -as-of stops at the last event not later than
  the timestamp; a bare date includes the whole day. -strict lists data quality warnings.
`
}

func (c *stateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "Reconstruct the state as of this timestamp")
	f.StringVar(&c.ticker, "s", "", "Only the events of this ticker, keeping all the cash")
	f.BoolVar(&c.strict, "strict", false, "Report data quality warnings")
	f.StringVar(&c.history, "h", "", "Alternate history id (default the real log)")
	f.BoolVar(&c.json, "json", false, "Print the state as JSON")
}

func (c *stateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var opts []folio.ReplayOption
	if c.asOf != "" {
		t, err := asOfTime(c.asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -as-of: %v\n", err)
			return subcommands.ExitUsageError
		}
		opts = append(opts, folio.AsOf(t))
	}
	if c.ticker != "" {
		opts = append(opts, folio.ForTicker(c.ticker))
	}
	if c.strict {
		opts = append(opts, folio.Strict())
	}

	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening event log: %v\n", err)
		return subcommands.ExitFailure
	}
	s, err := h.Reconstruct(c.history, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reconstructing state: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.json {
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding state: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Println(string(b))
		return subcommands.ExitSuccess
	}
	title := "Portfolio"
	if c.history != "" {
		title = "Portfolio (" + c.history + ")"
	}
	v := renderer.NewState(title, s, a.cfg.Currency)
	v.Ticker = c.ticker
	printMarkdown(renderer.RenderState(v))
	return subcommands.ExitSuccess
}

// asOfTime parses an as-of bound. A bare date is the end of that day, UTC.
func asOfTime(s string) (time.Time, error) {
	if len(s) <= len(date.DateFormat) {
		if d, err := date.Parse(s); err == nil {
			return d.End(time.UTC), nil
		}
	}
	return folio.ParseTimestamp(s)
}
