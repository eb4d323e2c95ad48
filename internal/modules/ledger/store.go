package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
)

// LoadError is a recoverable load failure: missing file, malformed JSON or
// schema drift. The caller gets an empty ledger alongside it and the cycle
// proceeds treating the portfolio as empty.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("ledger load from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Store persists the ledger as a JSON file keyed by ticker
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore creates a new ledger store
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  log.With().Str("repo", "ledger").Logger(),
	}
}

// fileLayout is the on-disk shape. Earlier script versions stored the bare
// ticker-keyed map with no header, so Load accepts both.
type fileLayout struct {
	LastEpoch string                     `json:"last_epoch,omitempty"`
	Positions map[string]domain.Position `json:"positions"`
}

// Load deserializes the persisted ledger. Any failure is reported as a
// *LoadError together with a usable empty ledger, never as a fatal error.
func (s *Store) Load() (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info().Str("path", s.path).Msg("No ledger file, starting empty")
		}
		return NewLedger(), &LoadError{Path: s.path, Err: err}
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil || layout.Positions == nil {
		// Legacy layout: bare map keyed by ticker
		var legacy map[string]domain.Position
		if legacyErr := json.Unmarshal(data, &legacy); legacyErr != nil || legacy == nil {
			if err == nil {
				err = fmt.Errorf("no positions object")
			}
			return NewLedger(), &LoadError{Path: s.path, Err: fmt.Errorf("malformed ledger: %w", err)}
		}
		layout = fileLayout{Positions: legacy}
	}

	l := &Ledger{
		LastEpoch: layout.LastEpoch,
		Positions: make(map[string]domain.Position, len(layout.Positions)),
	}
	for ticker, pos := range layout.Positions {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		pos.Ticker = ticker
		if err := validatePosition(pos); err != nil {
			return NewLedger(), &LoadError{Path: s.path, Err: fmt.Errorf("schema drift: %w", err)}
		}
		l.Positions[ticker] = pos
	}

	s.log.Info().Int("positions", len(l.Positions)).Str("last_epoch", l.LastEpoch).Msg("Ledger loaded")
	return l, nil
}

// Save persists the ledger atomically (write temp, then rename) so a crash
// mid-write cannot corrupt the store
func (s *Store) Save(l *Ledger) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	layout := fileLayout{
		LastEpoch: l.LastEpoch,
		Positions: l.Positions,
	}
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	s.log.Info().Int("positions", len(l.Positions)).Str("last_epoch", l.LastEpoch).Msg("Ledger saved")
	return nil
}

// validatePosition rejects records whose enums drifted from the schema
func validatePosition(pos domain.Position) error {
	if pos.Ticker == "" {
		return fmt.Errorf("position with empty ticker")
	}
	if !pos.Category.Valid() {
		return fmt.Errorf("position %s has unknown category %q", pos.Ticker, pos.Category)
	}
	switch pos.Status {
	case domain.StatusActive, domain.StatusSold, domain.StatusRemoved:
	default:
		return fmt.Errorf("position %s has unknown status %q", pos.Ticker, pos.Status)
	}
	if pos.Stage < 1 || pos.Stage > domain.MaxStage {
		return fmt.Errorf("position %s has stage %d outside 1..%d", pos.Ticker, pos.Stage, domain.MaxStage)
	}
	return nil
}
