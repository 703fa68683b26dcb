// Package cmd implements the CLI application to manage the event log.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/folio"
	"github.com/etnz/folio/config"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file (default <dir>/folio.yaml)")
var dataDir = flag.String("dir", "", "Data directory, overrides FOLIO_DIR and the configuration file")
var logLevel = flag.String("log-level", "", "Log level (debug, info, warn, error)")
var raw = flag.Bool("raw", false, "Print raw markdown instead of rendering it")

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, g := range groups {
		for _, cmd := range g.commands {
			c.Register(cmd, g.name)
		}
	}
}

// Commands returns every registered command, for completion.
func Commands() []subcommands.Command {
	var all []subcommands.Command
	for _, g := range groups {
		all = append(all, g.commands...)
	}
	return all
}

var groups = []struct {
	name     string
	commands []subcommands.Command
}{
	{"setup", []subcommands.Command{
		&setupCmd{},
	}},
	{"cash", []subcommands.Command{
		&cashCmd{typ: folio.TypeDeposit},
		&cashCmd{typ: folio.TypeWithdrawal},
		&cashCmd{typ: folio.TypeAdjustment},
	}},
	{"trades", []subcommands.Command{
		&tradeCmd{action: folio.Buy},
		&tradeCmd{action: folio.Sell},
		&dividendCmd{},
		&priceCmd{},
	}},
	{"options", []subcommands.Command{
		&optionOpenCmd{},
		&optionTerminalCmd{typ: folio.TypeOptionClose},
		&optionTerminalCmd{typ: folio.TypeOptionExpire},
		&optionTerminalCmd{typ: folio.TypeOptionAssign},
	}},
	{"journal", []subcommands.Command{
		&noteCmd{},
	}},
	{"events", []subcommands.Command{
		&eventsCmd{},
		&editCmd{},
		&rmCmd{},
	}},
	{"reports", []subcommands.Command{
		&stateCmd{},
	}},
	{"maintenance", []subcommands.Command{
		&compactCmd{},
		&expireCmd{},
		&migrateOptionsCmd{},
		&fmtCmd{},
		&cacheSyncCmd{},
	}},
	{"histories", []subcommands.Command{
		&historyCreateCmd{},
		&historyListCmd{},
		&historyExtendCmd{},
		&historyCompareCmd{},
		&historySnapshotCmd{},
		&historyDeleteCmd{},
	}},
	{"help", []subcommands.Command{
		&topicCmd{},
	}},
}

// app is the resolved configuration of a command invocation.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

// loadApp resolves the configuration: defaults, configuration file,
// environment, then global flags.
func loadApp() (*app, error) {
	if *dataDir != "" {
		os.Setenv("FOLIO_DIR", *dataDir)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	return &app{cfg: cfg, log: log}, nil
}

// mustApp is loadApp for commands: it prints the error and reports an exit
// status.
func mustApp() (*app, subcommands.ExitStatus) {
	a, err := loadApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}

func (a *app) store() (*folio.Store, error) {
	return folio.Open(a.cfg.LogPath(), folio.WithLogger(a.log))
}

func (a *app) start() (folio.StartingState, error) {
	return folio.LoadStartingState(a.cfg.StartingStatePath())
}

func (a *app) histories() (*folio.Histories, error) {
	s, err := a.store()
	if err != nil {
		return nil, err
	}
	start, err := a.start()
	if err != nil {
		return nil, err
	}
	return folio.NewHistories(a.cfg.HistoriesPath(), s, start), nil
}

// printMarkdown renders md for the terminal, or prints it as is with -raw.
func printMarkdown(md string) {
	if *raw {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// decimalFlag is a flag.Value holding a decimal amount.
type decimalFlag struct {
	decimal.Decimal
	set bool
}

func (d *decimalFlag) String() string {
	if d == nil || !d.set {
		return ""
	}
	return d.Decimal.String()
}

func (d *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	d.Decimal, d.set = v, true
	return nil
}

// listFlag is a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }
func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// draftFlags are the annotation flags every appending command accepts.
type draftFlags struct {
	timestamp string
	reason    string
	notes     string
	tags      string
}

func (d *draftFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.timestamp, "t", "", "Event timestamp, RFC 3339 or YYYY-MM-DD (default now)")
	f.StringVar(&d.reason, "reason", "", "Primary reason for the event")
	f.StringVar(&d.notes, "notes", "", "Free text notes")
	f.StringVar(&d.tags, "tags", "", "Comma separated tags")
}

// annotate copies the annotation flags into the draft.
func (d *draftFlags) annotate(dr folio.Draft) (folio.Draft, error) {
	if d.timestamp != "" {
		ts, err := folio.ParseTimestamp(d.timestamp)
		if err != nil {
			return dr, fmt.Errorf("invalid timestamp %q: %w", d.timestamp, err)
		}
		dr.Timestamp = ts
	}
	if d.reason != "" {
		dr.Reason = &folio.Reason{Primary: d.reason}
	}
	dr.Notes = d.notes
	dr.Tags = splitTags(d.tags)
	return dr, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// appendDraft annotates and appends a single draft to the event log.
func appendDraft(d *draftFlags, dr folio.Draft) subcommands.ExitStatus {
	dr, err := d.annotate(dr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
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
	id, err := s.Append(dr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error appending event: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Appended %s event #%d to %s\n", dr.Type, id, s.Path())
	return subcommands.ExitSuccess
}

