// Package folio reconstructs the state of an investment portfolio by
// replaying an append-only log of timestamped events.
//
// The log is a JSON Lines file owned by a Store: each line is one Event
// (trades, cash flows, dividends, option opens and terminals, price updates,
// notes). State is never stored; it is always a pure fold of a
// StartingState and the events:
//
//   - Reconstruct replays events into a State holding cash, holdings with
//     their weighted-average cost, active options, year-to-date income and
//     valuation.
//   - Histories manages named alternative timelines, each a copy of the real
//     log rewritten by a list of Modifications, that can be replayed and
//     compared against reality or each other.
//   - Compaction and migration keep the log small and consistent without
//     changing what it replays to.
//
// The pf command in the pf directory is the command-line front end of this
// package.
package folio
