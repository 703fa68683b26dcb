package folio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// InitialHolding is a position held before the first event.
type InitialHolding struct {
	Shares            Quantity        `json:"shares"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
}

// StartingState seeds the replay. It is written once at setup, a new setup
// overwrites it and invalidates every previously reconstructed state.
type StartingState struct {
	Cash         decimal.Decimal           `json:"cash"`
	Holdings     map[string]InitialHolding `json:"initial_holdings"`
	StartingDate time.Time                 `json:"starting_date,omitzero"`
	CreatedAt    time.Time                 `json:"created_at,omitzero"`
}

// Clone returns a deep copy of s.
func (s StartingState) Clone() StartingState {
	s.Holdings = maps.Clone(s.Holdings)
	return s
}

// LoadStartingState reads the starting state file. A missing file is an
// empty seed.
func LoadStartingState(path string) (StartingState, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return StartingState{Holdings: map[string]InitialHolding{}}, nil
	}
	if err != nil {
		return StartingState{}, fmt.Errorf("cannot read starting state %q: %w", path, err)
	}
	return DecodeStartingState(b)
}

// DecodeStartingState decodes the starting state JSON. Tickers are upper
// cased.
func DecodeStartingState(b []byte) (StartingState, error) {
	var s StartingState
	if err := json.Unmarshal(b, &s); err != nil {
		return StartingState{}, fmt.Errorf("invalid starting state: %w", err)
	}
	holdings := make(map[string]InitialHolding, len(s.Holdings))
	for ticker, h := range s.Holdings {
		holdings[normTicker(ticker)] = h
	}
	s.Holdings = holdings
	return s, nil
}

// SaveStartingState overwrites the starting state file atomically.
func SaveStartingState(path string, s StartingState) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode starting state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create directory for %q: %w", path, err)
	}
	return writeFileAtomic(path, func(f *os.File) error {
		_, err := f.Write(append(b, '\n'))
		return err
	})
}
