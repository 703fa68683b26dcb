package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/folio"
	"github.com/google/subcommands"
)

type noteCmd struct {
	kind     string
	category string
	ticker   string
	draft    draftFlags
}

func (*noteCmd) Name() string     { return "note" }
func (*noteCmd) Synopsis() string { return "add a note, goal or strategy to the journal" }
func (*noteCmd) Usage() string {
	return `note [-type note|goal|strategy] [-category <category>] [-s <ticker>] <text>...

  Records a journal entry. Notes never change cash or holdings, they are listed
  by category in the state report.
`
}

func (c *noteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", "note", "Entry type: note, goal or strategy")
	f.StringVar(&c.category, "category", "", "Category, defaults to the entry type")
	f.StringVar(&c.ticker, "s", "", "Optional ticker the entry is about")
	c.draft.SetFlags(f)
}

func (c *noteCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.TrimSpace(strings.Join(f.Args(), " "))
	if text == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var typ folio.EventType
	switch strings.ToLower(c.kind) {
	case "note":
		typ = folio.TypeNote
	case "goal":
		typ = folio.TypeGoalUpdate
	case "strategy":
		typ = folio.TypeStrategyUpdate
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown entry type %q\n", c.kind)
		return subcommands.ExitUsageError
	}
	info := folio.Info{Category: c.category, Text: text, Symbol: strings.ToUpper(c.ticker)}
	return appendDraft(&c.draft, folio.NewDraft(typ, info))
}
