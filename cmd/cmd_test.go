package cmd

import (
	"context"
	"flag"
	"path/filepath"
	"testing"

	"github.com/etnz/folio"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// run executes one command line against the data directory of the test.
func run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	top := flag.NewFlagSet("pf", flag.ContinueOnError)
	c := subcommands.NewCommander(top, "pf")
	Register(c)
	if err := top.Parse(args); err != nil {
		t.Fatalf("cannot parse %v: %v", args, err)
	}
	return c.Execute(context.Background())
}

func mustRun(t *testing.T, args ...string) {
	t.Helper()
	if status := run(t, args...); status != subcommands.ExitSuccess {
		t.Fatalf("pf %v exited with %v", args, status)
	}
}

func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FOLIO_DIR", dir)
	t.Setenv("FOLIO_LOG_LEVEL", "error")
	return dir
}

func replay(t *testing.T, dir string) *folio.State {
	t.Helper()
	s, err := folio.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	events, err := s.Events()
	if err != nil {
		t.Fatal(err)
	}
	start, err := folio.LoadStartingState(filepath.Join(dir, "starting_state.json"))
	if err != nil {
		t.Fatal(err)
	}
	return folio.Reconstruct(start, events, folio.Strict())
}

func TestCommands_Lifecycle(t *testing.T) {
	dir := setupDir(t)

	mustRun(t, "setup", "-cash", "10000", "-holding", "bbb=5@20", "-date", "2025-01-01")
	mustRun(t, "deposit", "-a", "500", "-t", "2025-01-01T12:00:00Z")
	mustRun(t, "buy", "-s", "aaa", "-q", "10", "-p", "100", "-t", "2025-01-02T10:00:00Z")
	mustRun(t, "sell", "-s", "AAA", "-q", "4", "-p", "150", "-t", "2025-01-03T10:00:00Z")
	mustRun(t, "option-open", "-s", "AAA", "-strategy", "covered_call", "-strike", "160", "-exp", "2025-02-21", "-n", "1", "-premium", "300", "-t", "2025-01-04T10:00:00Z")
	mustRun(t, "option-expire", "-open", "4", "-profit", "300", "-t", "2025-02-22T10:00:00Z")
	mustRun(t, "dividend", "-s", "BBB", "-a", "12.5", "-t", "2025-03-01T10:00:00Z")
	mustRun(t, "price", "-s", "AAA", "-p", "170", "-t", "2025-03-02T10:00:00Z")
	mustRun(t, "note", "-type", "goal", "-t", "2025-03-03T10:00:00Z", "retire", "early")

	s := replay(t, dir)
	if len(s.Warnings) > 0 {
		t.Errorf("replay warnings: %v", s.Warnings)
	}
	// 10000 + 500 - 1000 + 600 + 300 + 12.5
	if want := decimal.RequireFromString("10412.5"); !s.Cash.Equal(want) {
		t.Errorf("Cash = %v, want %v", s.Cash, want)
	}
	if got := s.Holdings["AAA"]; !got.Equal(folio.Q(6)) {
		t.Errorf("Holdings[AAA] = %v, want 6", got)
	}
	if got := s.Holdings["BBB"]; !got.Equal(folio.Q(5)) {
		t.Errorf("Holdings[BBB] = %v, want 5 from the starting state", got)
	}
	if !s.YTDTradingGains.Equal(decimal.NewFromInt(200)) {
		t.Errorf("YTDTradingGains = %v, want 200 from the average cost", s.YTDTradingGains)
	}
	if !s.YTDOptionIncome.Equal(decimal.NewFromInt(300)) {
		t.Errorf("YTDOptionIncome = %v, want 300", s.YTDOptionIncome)
	}
	if len(s.ActiveOptions) != 0 {
		t.Errorf("ActiveOptions = %v, want none", s.ActiveOptions)
	}
	if got := s.Journal["goals"]; len(got) != 1 || got[0].Text != "retire early" {
		t.Errorf("Journal[goals] = %v", got)
	}

	mustRun(t, "events", "-type", "trade")
	mustRun(t, "state", "-as-of", "2025-01-03", "-strict")
	mustRun(t, "state", "-json")
}

func TestCommands_EditAndRemove(t *testing.T) {
	dir := setupDir(t)
	mustRun(t, "deposit", "-a", "100", "-t", "2025-01-01")
	mustRun(t, "deposit", "-a", "50", "-t", "2025-01-02")

	mustRun(t, "edit", "-data", `{"amount":75}`, "-recompute-cash", "-notes", "fixed", "2")
	mustRun(t, "rm", "1")

	if !replay(t, dir).Cash.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Cash = %v, want 75", replay(t, dir).Cash)
	}
	if status := run(t, "rm", "1"); status != subcommands.ExitFailure {
		t.Errorf("rm of a missing event = %v, want failure", status)
	}
	if status := run(t, "edit", "-data", `{"bogus":1}`, "2"); status != subcommands.ExitUsageError {
		t.Errorf("edit with unknown data fields = %v, want usage error", status)
	}
}

func TestCommands_UsageErrors(t *testing.T) {
	setupDir(t)
	for _, args := range [][]string{
		{"buy", "-s", "AAA"},
		{"sell", "-q", "1", "-p", "1"},
		{"deposit"},
		{"withdraw", "-a", "-5"},
		{"option-close", "-profit", "1"},
		{"note"},
		{"note", "-type", "todo", "text"},
		{"events", "-type", "nope"},
		{"state", "-as-of", "yesterday"},
		{"history-delete", "reality"},
		{"history-compare"},
	} {
		if status := run(t, args...); status != subcommands.ExitUsageError {
			t.Errorf("pf %v = %v, want usage error", args, status)
		}
	}
}

func TestCommands_Topic(t *testing.T) {
	setupDir(t)
	mustRun(t, "topic")
	mustRun(t, "topic", "-list")
	mustRun(t, "topic", "events", "cash")
	if status := run(t, "topic", "missing"); status != subcommands.ExitFailure {
		t.Errorf("pf topic missing = %v, want failure", status)
	}
}

func TestCommands_Histories(t *testing.T) {
	dir := setupDir(t)
	mustRun(t, "deposit", "-a", "1000", "-t", "2025-01-01")
	mustRun(t, "buy", "-s", "AAA", "-q", "2", "-p", "100", "-t", "2025-01-02")
	mustRun(t, "buy", "-s", "BBB", "-q", "1", "-p", "50", "-t", "2025-01-03")

	mustRun(t, "history-create", "-name", "no aaa", "-remove-ticker", "aaa", "-scale", "BBB=2")

	s, err := folio.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	h := folio.NewHistories(filepath.Join(dir, "histories"), s, folio.StartingState{})
	list, err := h.List()
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v, want one history", list, err)
	}
	id := list[0].ID
	if len(list[0].Modifications) != 2 || list[0].EventCount != 2 {
		t.Errorf("history = %+v, want 2 rules and 2 events", list[0])
	}

	mustRun(t, "history-extend", "-reprice", "2=40", id)
	mustRun(t, "history-list")
	mustRun(t, "history-compare", "-years", "5", id)
	mustRun(t, "history-snapshot", id, "1")
	mustRun(t, "history-delete", id)

	if status := run(t, "history-delete", id); status != subcommands.ExitFailure {
		t.Errorf("second history-delete = %v, want failure", status)
	}
	if n, _ := s.Events(); len(n) != 3 {
		t.Errorf("real log has %d events, want 3 untouched", len(n))
	}
}

func TestCommands_Maintenance(t *testing.T) {
	dir := setupDir(t)
	for _, ts := range []string{"09:00", "10:00", "11:00", "12:00"} {
		mustRun(t, "price", "-s", "AAA", "-p", "10", "-t", "2025-01-02T"+ts+":00Z")
	}
	mustRun(t, "option-open", "-s", "AAA", "-strike", "12", "-exp", "2025-01-10", "-premium", "40", "-t", "2025-01-02T13:00:00Z")
	mustRun(t, "compact")
	mustRun(t, "expire", "-today", "2025-02-01")
	mustRun(t, "migrate-options")
	mustRun(t, "fmt")
	mustRun(t, "cache-sync", "-s", "AAA")

	s := replay(t, dir)
	if len(s.ActiveOptions) != 0 || !s.YTDOptionIncome.Equal(decimal.NewFromInt(40)) {
		t.Errorf("after expire: options %v, income %v", s.ActiveOptions, s.YTDOptionIncome)
	}
	// 4 prices compacted to 2, the open and its expiration
	if s.EventsProcessed != 4 {
		t.Errorf("EventsProcessed = %d, want 4", s.EventsProcessed)
	}
}

func TestParseHolding(t *testing.T) {
	ticker, h, err := parseHolding("aapl=10@150.5")
	if err != nil {
		t.Fatal(err)
	}
	if ticker != "AAPL" || !h.Shares.Equal(folio.Q(10)) || !h.CostBasisPerShare.Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("parseHolding() = %q, %+v", ticker, h)
	}
	for _, bad := range []string{"AAPL", "AAPL=10", "=10@1", "AAPL=x@1", "AAPL=1@y"} {
		if _, _, err := parseHolding(bad); err == nil {
			t.Errorf("parseHolding(%q) succeeded", bad)
		}
	}
}
