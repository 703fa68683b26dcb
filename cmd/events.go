package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/etnz/folio"
	"github.com/etnz/folio/renderer"
	"github.com/google/subcommands"
)

// --- Events Command ---

type eventsCmd struct {
	typ    string
	ticker string
	limit  int
	where  string
}

func (*eventsCmd) Name() string     { return "events" }
func (*eventsCmd) Synopsis() string { return "list the events of the log" }
func (*eventsCmd) Usage() string {
	return `events [-type <event type>] [-s <ticker>] [-n <limit>] [-where <jsonpath predicate>]

  Lists events, most recent id first.
  -where filters on the JSON record, e.g. -where '@.data.shares > 10'.
`
}

func (c *eventsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "", "Only events of this type")
	f.StringVar(&c.ticker, "s", "", "Only events whose ticker contains this text")
	f.IntVar(&c.limit, "n", 0, "Maximum number of events")
	f.StringVar(&c.where, "where", "", "jsonpath filter predicate on the event record")
}

func (c *eventsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := folio.Filter{Ticker: c.ticker, Limit: c.limit, Where: c.where}
	if c.typ != "" {
		t, err := folio.ParseEventType(c.typ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		filter.Type = t
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
	events, err := s.Read(filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading events: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderEvents(renderer.NewEvents("Events", events, a.cfg.Currency)))
	return subcommands.ExitSuccess
}

// --- Edit Command ---

type editCmd struct {
	timestamp     string
	typ           string
	data          string
	reason        string
	notes         string
	tags          string
	cashDelta     decimalFlag
	recomputeCash bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "correct the fields of an event" }
func (*editCmd) Usage() string {
	return `edit [-t <timestamp>] [-type <event type>] [-data <json>] [-reason <reason>] [-notes <notes>] [-tags <tags>] [-cash <delta>] [-recompute-cash] <event id>

  Overwrites the given fields of an event, the others are left as they are.
  -data replaces the whole data object. -recompute-cash derives affects_cash and
  cash_delta from the cash rules once the other fields are applied.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	*c = editCmd{}
	f.StringVar(&c.timestamp, "t", "", "New timestamp")
	f.StringVar(&c.typ, "type", "", "New event type")
	f.StringVar(&c.data, "data", "", "New data object, as JSON")
	f.StringVar(&c.reason, "reason", "", "New primary reason")
	f.StringVar(&c.notes, "notes", "", "New notes")
	f.StringVar(&c.tags, "tags", "", "New comma separated tags")
	f.Var(&c.cashDelta, "cash", "New cash delta, affects_cash follows")
	f.BoolVar(&c.recomputeCash, "recompute-cash", false, "Derive the cash fields from the cash rules")
}

func (c *editCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := eventID(f)
	if !ok {
		f.Usage()
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
	e, found, err := s.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading event: %v\n", err)
		return subcommands.ExitFailure
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Error: event #%d not found\n", id)
		return subcommands.ExitFailure
	}

	p, err := c.patch(e.Type, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if _, err := s.Update(id, p); err != nil {
		fmt.Fprintf(os.Stderr, "Error updating event: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Updated event #%d\n", id)
	return subcommands.ExitSuccess
}

// patch builds the patch of the flags explicitly set. typ is the current
// type of the event, used to decode -data.
func (c *editCmd) patch(typ folio.EventType, f *flag.FlagSet) (folio.Patch, error) {
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	p := folio.Patch{RecomputeCash: c.recomputeCash}
	if set["t"] {
		ts, err := folio.ParseTimestamp(c.timestamp)
		if err != nil {
			return p, err
		}
		p.Timestamp = &ts
	}
	if set["type"] {
		t, err := folio.ParseEventType(c.typ)
		if err != nil {
			return p, err
		}
		p.Type, typ = &t, t
	}
	if set["data"] {
		data, err := folio.DecodePayload(typ, []byte(c.data))
		if err != nil {
			return p, err
		}
		p.Data = data
	}
	if set["reason"] {
		p.Reason = &folio.Reason{Primary: c.reason}
	}
	if set["notes"] {
		p.Notes = &c.notes
	}
	if set["tags"] {
		tags := splitTags(c.tags)
		p.Tags = &tags
	}
	if set["cash"] {
		affects := !c.cashDelta.IsZero()
		p.CashDelta, p.AffectsCash = &c.cashDelta.Decimal, &affects
	}
	return p, nil
}

// --- Remove Command ---

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete an event from the log" }
func (*rmCmd) Usage() string {
	return `rm <event id>

  Deletes an event. The ids of the other events are unchanged.
`
}

func (*rmCmd) SetFlags(f *flag.FlagSet) {}

func (*rmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, ok := eventID(f)
	if !ok {
		f.Usage()
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
	found, err := s.Delete(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting event: %v\n", err)
		return subcommands.ExitFailure
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Error: event #%d not found\n", id)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted event #%d\n", id)
	return subcommands.ExitSuccess
}

// eventID parses the single positional event id.
func eventID(f *flag.FlagSet) (int64, bool) {
	if f.NArg() != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	return id, err == nil && id > 0
}
