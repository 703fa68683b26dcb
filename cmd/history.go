package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// modificationFlags collects the rewrite rules of history-create and
// history-extend, in command line order.
type modificationFlags struct {
	mods folio.Modifications
}

// ruleFlag adds the rules parsed by parse to the shared list.
type ruleFlag struct {
	m     *modificationFlags
	parse func(string) (folio.Modification, error)
}

func (r ruleFlag) String() string { return "" }
func (r ruleFlag) Set(s string) error {
	mod, err := r.parse(s)
	if err != nil {
		return err
	}
	r.m.mods = append(r.m.mods, mod)
	return nil
}

func (m *modificationFlags) SetFlags(f *flag.FlagSet) {
	f.Var(ruleFlag{m, func(s string) (folio.Modification, error) {
		return folio.RemoveTicker{Ticker: strings.ToUpper(strings.TrimSpace(s))}, nil
	}}, "remove-ticker", "Remove every event of a ticker, repeatable")
	f.Var(ruleFlag{m, func(s string) (folio.Modification, error) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid event id %q", s)
		}
		return folio.RemoveEvent{EventID: id}, nil
	}}, "remove-event", "Remove one event by id, repeatable")
	f.Var(ruleFlag{m, func(s string) (folio.Modification, error) {
		ticker, factor, err := keyDecimal(s)
		if err != nil {
			return nil, err
		}
		return folio.ScaleTicker{Ticker: strings.ToUpper(ticker), Factor: factor}, nil
	}}, "scale", "Scale the quantities of a ticker as <ticker>=<factor>, repeatable")
	f.Var(ruleFlag{m, func(s string) (folio.Modification, error) {
		idStr, price, err := keyDecimal(s)
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid event id %q", idStr)
		}
		return folio.RepriceTrade{EventID: id, Price: price}, nil
	}}, "reprice", "Change the price of a trade as <event id>=<price>, repeatable")
	f.Var(ruleFlag{m, func(s string) (folio.Modification, error) {
		return folio.DecodeModification([]byte(s))
	}}, "rule", `Any rule as a JSON object, e.g. '{"type":"add_trade",...}', repeatable`)
}

func keyDecimal(s string) (string, decimal.Decimal, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", decimal.Zero, fmt.Errorf("invalid rule %q, want <key>=<value>", s)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid value in rule %q", s)
	}
	return strings.TrimSpace(k), d, nil
}

func historyError(err error, what string) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	return subcommands.ExitFailure
}

// --- History Create Command ---

type historyCreateCmd struct {
	name        string
	description string
	rules       modificationFlags
}

func (*historyCreateCmd) Name() string     { return "history-create" }
func (*historyCreateCmd) Synopsis() string { return "branch an alternate history off the real log" }
func (*historyCreateCmd) Usage() string {
	return `history-create -name <name> [-desc <description>] [rules...]

  Copies the event log and rewrites the copy with the rules, in order. The real log
  is never modified.

Usage Examples:
$ pf history-create -name "no tesla" -remove-ticker TSLA
$ pf history-create -name "double apple" -scale AAPL=2 -reprice 12=95.5
`
}

func (c *historyCreateCmd) SetFlags(f *flag.FlagSet) {
	*c = historyCreateCmd{}
	f.StringVar(&c.name, "name", "", "Name of the history")
	f.StringVar(&c.description, "desc", "", "Description")
	c.rules.SetFlags(f)
}

func (c *historyCreateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		return historyError(err, "opening histories")
	}
	hist, err := h.Create(c.name, c.description, c.rules.mods...)
	if err != nil {
		return historyError(err, "creating history")
	}
	fmt.Printf("Created history %s (%q, %d events)\n", hist.ID, hist.Name, hist.EventCount)
	return subcommands.ExitSuccess
}

// --- History List Command ---

type historyListCmd struct{}

func (*historyListCmd) Name() string     { return "history-list" }
func (*historyListCmd) Synopsis() string { return "list the alternate histories" }
func (*historyListCmd) Usage() string {
	return `history-list

  Lists the alternate histories with their rules.
`
}

func (*historyListCmd) SetFlags(f *flag.FlagSet) {}

func (*historyListCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		return historyError(err, "opening histories")
	}
	list, err := h.List()
	if err != nil {
		return historyError(err, "listing histories")
	}
	printMarkdown(renderer.RenderHistories(renderer.NewHistories(list)))
	return subcommands.ExitSuccess
}

// --- History Extend Command ---

type historyExtendCmd struct {
	rules modificationFlags
}

func (*historyExtendCmd) Name() string     { return "history-extend" }
func (*historyExtendCmd) Synopsis() string { return "apply more rules to an alternate history" }
func (*historyExtendCmd) Usage() string {
	return `history-extend [rules...] <history id>

  Rewrites an existing alternate history with more rules.
`
}

func (c *historyExtendCmd) SetFlags(f *flag.FlagSet) {
	*c = historyExtendCmd{}
	c.rules.SetFlags(f)
}

func (c *historyExtendCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || len(c.rules.mods) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		return historyError(err, "opening histories")
	}
	hist, err := h.Extend(f.Arg(0), c.rules.mods...)
	if err != nil {
		return historyError(err, "extending history")
	}
	fmt.Printf("Extended history %s (%d rules, %d events)\n", hist.ID, len(hist.Modifications), hist.EventCount)
	return subcommands.ExitSuccess
}

// --- History Compare Command ---

type historyCompareCmd struct {
	years        int
	annualReturn decimalFlag
}

func (*historyCompareCmd) Name() string     { return "history-compare" }
func (*historyCompareCmd) Synopsis() string { return "compare two histories" }
func (*historyCompareCmd) Usage() string {
	return `history-compare [-years <n> [-return <rate>]] <history a> [<history b>]

  Reports the differences of history B against history A: holdings, cash, total value,
  income and the events that diverge. With a single history, A is the real log.
  -years projects both total values at the annual -return rate (default 0.07).
`
}

func (c *historyCompareCmd) SetFlags(f *flag.FlagSet) {
	*c = historyCompareCmd{}
	f.IntVar(&c.years, "years", 0, "Projection horizon in years")
	f.Var(&c.annualReturn, "return", "Annual return of the projection, e.g. 0.07")
}

func (c *historyCompareCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var ida, idb string
	switch f.NArg() {
	case 1:
		ida, idb = folio.Reality, f.Arg(0)
	case 2:
		ida, idb = f.Arg(0), f.Arg(1)
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
	var proj folio.Projector
	if c.years > 0 {
		rate := decimal.RequireFromString("0.07")
		if c.annualReturn.set {
			rate = c.annualReturn.Decimal
		}
		proj = folio.GrowthProjector{AnnualReturn: rate, Years: c.years}
	}

	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		return historyError(err, "opening histories")
	}
	cmp, err := h.Compare(ida, idb, proj)
	if err != nil {
		return historyError(err, "comparing histories")
	}
	printMarkdown(renderer.RenderComparison(renderer.NewComparison(cmp, a.cfg.Currency)))
	return subcommands.ExitSuccess
}

// --- History Snapshot Command ---

type historySnapshotCmd struct {
	strict bool
}

func (*historySnapshotCmd) Name() string     { return "history-snapshot" }
func (*historySnapshotCmd) Synopsis() string { return "reconstruct a history up to an event id" }
func (*historySnapshotCmd) Usage() string {
	return `history-snapshot [-strict] <history id> <event id>

  Reconstructs the state of a history after the events whose id is at most the
  given one. Use "reality" for the real log.
`
}

func (c *historySnapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.strict, "strict", false, "Report data quality warnings")
}

func (c *historySnapshotCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	eventID, err := strconv.ParseInt(f.Arg(1), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid event id %q\n", f.Arg(1))
		return subcommands.ExitUsageError
	}
	var opts []folio.ReplayOption
	if c.strict {
		opts = append(opts, folio.Strict())
	}
	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		return historyError(err, "opening histories")
	}
	s, err := h.SnapshotAt(f.Arg(0), eventID, opts...)
	if err != nil {
		return historyError(err, "reconstructing snapshot")
	}
	title := fmt.Sprintf("%s at event #%d", f.Arg(0), eventID)
	printMarkdown(renderer.RenderState(renderer.NewState(title, s, a.cfg.Currency)))
	return subcommands.ExitSuccess
}

// --- History Delete Command ---

type historyDeleteCmd struct{}

func (*historyDeleteCmd) Name() string     { return "history-delete" }
func (*historyDeleteCmd) Synopsis() string { return "delete an alternate history" }
func (*historyDeleteCmd) Usage() string {
	return `history-delete <history id>

  Deletes an alternate history. The real log cannot be deleted.
`
}

func (*historyDeleteCmd) SetFlags(f *flag.FlagSet) {}

func (*historyDeleteCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || strings.EqualFold(f.Arg(0), folio.Reality) {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := mustApp()
	if a == nil {
		return status
	}
	h, err := a.histories()
	if err != nil {
		return historyError(err, "opening histories")
	}
	found, err := h.Delete(f.Arg(0))
	if err != nil {
		return historyError(err, "deleting history")
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Error: history %q not found\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted history %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}
