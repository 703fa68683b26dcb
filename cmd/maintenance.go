package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/folio/cache"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

// --- Compact Command ---

type compactCmd struct{}

func (*compactCmd) Name() string     { return "compact" }
func (*compactCmd) Synopsis() string { return "drop redundant intraday price updates" }
func (*compactCmd) Usage() string {
	return `compact

  Keeps only the earliest and the latest PRICE_UPDATE of each ticker on each day.
  The replayed holdings, cash and latest prices are unchanged.
`
}

func (*compactCmd) SetFlags(f *flag.FlagSet) {}

func (*compactCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := mustApp()
	if a == nil {
		return status
	}
	s, err := a.store()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening event log: %v\n", err)
		return subcommands.ExitFailure
	}
	report, err := s.CompactPrices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compacting prices: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderCompaction(renderer.NewCompaction(report)))
	return subcommands.ExitSuccess
}

// --- Expire Command ---

type expireCmd struct {
	today string
}

func (*expireCmd) Name() string     { return "expire" }
func (*expireCmd) Synopsis() string { return "expire the option positions past their expiration" }
func (*expireCmd) Usage() string {
	return `expire [-today <date>]

  Appends an OPTION_EXPIRE event for every active option whose expiration is before
  today, unless it was opened with -manual. The full premium is kept as income.
`
}

func (c *expireCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.today, "today", date.Today().String(), "Current date (YYYY-MM-DD)")
}

func (c *expireCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	today, err := date.Parse(c.today)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, status := mustApp()
	if a == nil {
		return status
	}
	s, err := a.store()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening event log: %v\n", err)
		return subcommands.ExitFailure
	}
	start, err := a.start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading starting state: %v\n", err)
		return subcommands.ExitFailure
	}
	ids, err := s.ExpireOptions(start, today)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expiring options: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(ids) == 0 {
		fmt.Println("No option to expire.")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Expired %d option positions: events %v\n", len(ids), ids)
	return subcommands.ExitSuccess
}

// --- Migrate Options Command ---

type migrateOptionsCmd struct{}

func (*migrateOptionsCmd) Name() string { return "migrate-options" }
func (*migrateOptionsCmd) Synopsis() string {
	return "stamp position ids on legacy option records"
}
func (*migrateOptionsCmd) Usage() string {
	return `migrate-options

  Gives every OPTION_OPEN without a position id a new one, and copies it to the
  terminal events that reference the open by its legacy uuid or its event id.
`
}

func (*migrateOptionsCmd) SetFlags(f *flag.FlagSet) {}

func (*migrateOptionsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := mustApp()
	if a == nil {
		return status
	}
	s, err := a.store()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening event log: %v\n", err)
		return subcommands.ExitFailure
	}
	n, err := s.MigrateOptionKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error migrating option records: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Migrated %d option records.\n", n)
	return subcommands.ExitSuccess
}

// --- Format Command ---

type fmtCmd struct{}

func (*fmtCmd) Name() string { return "fmt" }
func (*fmtCmd) Synopsis() string {
	return "rewrite the event log in fold order and canonical form"
}
func (*fmtCmd) Usage() string {
	return `fmt

  Reads every event, sorts them by timestamp then id, and writes them back in the
  canonical JSONL encoding. Ids and contents are unchanged.
`
}

func (*fmtCmd) SetFlags(f *flag.FlagSet) {}

func (*fmtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := mustApp()
	if a == nil {
		return status
	}
	s, err := a.store()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening event log: %v\n", err)
		return subcommands.ExitFailure
	}
	n, err := s.Format()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting event log: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "✅ Successfully formatted %d events in %s.\n", n, s.Path())
	return subcommands.ExitSuccess
}

// --- Cache Sync Command ---

type cacheSyncCmd struct {
	ticker string
}

func (*cacheSyncCmd) Name() string     { return "cache-sync" }
func (*cacheSyncCmd) Synopsis() string { return "rebuild the SQLite copy of the event log" }
func (*cacheSyncCmd) Usage() string {
	return `cache-sync [-s <ticker>]

  Reloads the relational cache from the event log. With -s, lists the cached
  events of a ticker once the cache is rebuilt.
`
}

func (c *cacheSyncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "s", "", "List the cached events of this ticker")
}

func (c *cacheSyncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := mustApp()
	if a == nil {
		return status
	}
	s, err := a.store()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening event log: %v\n", err)
		return subcommands.ExitFailure
	}
	events, err := s.Events()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading events: %v\n", err)
		return subcommands.ExitFailure
	}
	db, err := cache.Open(a.cfg.CachePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	n, err := db.Rebuild(ctx, events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rebuilding cache: %v\n", err)
		return subcommands.ExitFailure
	}
	a.log.Info().Int("events", n).Str("cache", a.cfg.CachePath()).Msg("cache rebuilt")

	if c.ticker == "" {
		fmt.Printf("Cached %d events in %s\n", n, a.cfg.CachePath())
		return subcommands.ExitSuccess
	}
	cached, err := db.Events(ctx, c.ticker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying cache: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderEvents(renderer.NewEvents("Cached events of "+c.ticker, cached, a.cfg.Currency)))
	return subcommands.ExitSuccess
}
