package ledger

import (
	"fmt"
	"strings"

	"github.com/lynchbot/screener-trader/internal/domain"
)

// Ledger is the in-memory view of the position store for one cycle.
// It is loaded once at cycle start, mutated in memory, and saved once at
// cycle end; nothing else touches the backing file.
type Ledger struct {
	// LastEpoch is the ISO year-week of the last reconciled cycle.
	LastEpoch string

	// Positions holds every position ever opened, keyed by ticker.
	Positions map[string]domain.Position
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		Positions: make(map[string]domain.Position),
	}
}

// Upsert inserts or replaces the position under its ticker
func (l *Ledger) Upsert(pos domain.Position) error {
	ticker := strings.ToUpper(strings.TrimSpace(pos.Ticker))
	if ticker == "" {
		return fmt.Errorf("failed to upsert position: empty ticker")
	}
	pos.Ticker = ticker
	l.Positions[ticker] = pos
	return nil
}

// Get returns the position for ticker, if any
func (l *Ledger) Get(ticker string) (domain.Position, bool) {
	pos, ok := l.Positions[strings.ToUpper(strings.TrimSpace(ticker))]
	return pos, ok
}

// Active returns all currently held positions
func (l *Ledger) Active() []domain.Position {
	var active []domain.Position
	for _, pos := range l.Positions {
		if pos.Active() {
			active = append(active, pos)
		}
	}
	return active
}

// ActiveByCategory returns currently held positions in the given category
func (l *Ledger) ActiveByCategory(cat domain.Category) []domain.Position {
	var active []domain.Position
	for _, pos := range l.Positions {
		if pos.Active() && pos.Category == cat {
			active = append(active, pos)
		}
	}
	return active
}

// InvestedWeight returns the summed weight of all active positions in percent
func (l *Ledger) InvestedWeight() float64 {
	total := 0.0
	for _, pos := range l.Positions {
		if pos.Active() {
			total += pos.WeightPct
		}
	}
	return total
}

// CategoryWeight returns the summed active weight for one category in percent
func (l *Ledger) CategoryWeight(cat domain.Category) float64 {
	total := 0.0
	for _, pos := range l.Positions {
		if pos.Active() && pos.Category == cat {
			total += pos.WeightPct
		}
	}
	return total
}

// RegionCount returns the number of active positions under the concentration cap
func (l *Ledger) RegionCount() int {
	count := 0
	for _, pos := range l.Positions {
		if pos.Active() && pos.RegionFlag {
			count++
		}
	}
	return count
}

// Clone returns a deep copy, so reconciliation can compute a next state
// without mutating the loaded snapshot
func (l *Ledger) Clone() *Ledger {
	clone := &Ledger{
		LastEpoch: l.LastEpoch,
		Positions: make(map[string]domain.Position, len(l.Positions)),
	}
	for ticker, pos := range l.Positions {
		clone.Positions[ticker] = pos
	}
	return clone
}
