package folio

import (
	"maps"
	"slices"
	"time"

	"github.com/etnz/folio/date"
)

// CompactedDay is the outcome of the compaction of one ticker on one day.
type CompactedDay struct {
	Day     date.Date `json:"day"`
	Ticker  string    `json:"ticker"`
	Kept    [2]int64  `json:"kept"`
	Removed int       `json:"removed"`
}

// CompactionReport lists what CompactPrices removed.
type CompactionReport struct {
	Days []CompactedDay `json:"days"`
}

// Removed returns the total number of events removed.
func (r CompactionReport) Removed() int {
	n := 0
	for _, d := range r.Days {
		n += d.Removed
	}
	return n
}

// RemovedPerDay returns the number of events removed by day.
func (r CompactionReport) RemovedPerDay() map[date.Date]int {
	m := make(map[date.Date]int)
	for _, d := range r.Days {
		m[d.Day] += d.Removed
	}
	return m
}

type dayTicker struct {
	day    date.Date
	ticker string
}

// compactPrices returns events without the PRICE_UPDATE events that are
// neither the earliest nor the latest of their ticker on their UTC day.
func compactPrices(events []Event) ([]Event, CompactionReport) {
	groups := make(map[dayTicker][]int)
	for i, e := range events {
		if e.Type != TypePriceUpdate {
			continue
		}
		k := dayTicker{date.Of(e.Timestamp.UTC()), e.Ticker()}
		groups[k] = append(groups[k], i)
	}

	var report CompactionReport
	drop := make(map[int]bool)
	keys := slices.SortedFunc(maps.Keys(groups), func(a, b dayTicker) int {
		switch {
		case a.day.Before(b.day):
			return -1
		case a.day.After(b.day):
			return 1
		case a.ticker < b.ticker:
			return -1
		case a.ticker > b.ticker:
			return 1
		}
		return 0
	})
	for _, k := range keys {
		idx := groups[k]
		if len(idx) <= 2 {
			continue
		}
		slices.SortStableFunc(idx, func(i, j int) int {
			if c := events[i].Timestamp.Compare(events[j].Timestamp); c != 0 {
				return c
			}
			return cmpInt(events[i].ID, events[j].ID)
		})
		for _, i := range idx[1 : len(idx)-1] {
			drop[i] = true
		}
		report.Days = append(report.Days, CompactedDay{
			Day:     k.day,
			Ticker:  k.ticker,
			Kept:    [2]int64{events[idx[0]].ID, events[idx[len(idx)-1]].ID},
			Removed: len(idx) - 2,
		})
	}
	if len(drop) == 0 {
		return events, report
	}
	kept := make([]Event, 0, len(events)-len(drop))
	for i, e := range events {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	return kept, report
}

// CompactPrices keeps, for every ticker and every day with more than two
// PRICE_UPDATE events, only the earliest and the latest of them. Ids are not
// renumbered.
func (s *Store) CompactPrices() (CompactionReport, error) {
	unlock, err := s.lock(true)
	if err != nil {
		return CompactionReport{}, err
	}
	defer unlock()

	events, err := s.load()
	if err != nil {
		return CompactionReport{}, err
	}
	start := time.Now()
	kept, report := compactPrices(events)
	if report.Removed() == 0 {
		return report, nil
	}
	if err := s.rewrite(kept); err != nil {
		return CompactionReport{}, err
	}
	s.log.Info().Int("removed", report.Removed()).Int("days", len(report.Days)).Dur("took", time.Since(start)).Msg("price updates compacted")
	return report, nil
}
