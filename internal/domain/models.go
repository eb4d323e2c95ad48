package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category is a fixed investment bucket with its own slot count and weight share
type Category string

const (
	CategoryBestValue  Category = "best_value"
	CategoryHighGrowth Category = "high_growth"
	CategoryBalanced   Category = "balanced"
)

// Categories returns all categories in display order
func Categories() []Category {
	return []Category{CategoryBestValue, CategoryHighGrowth, CategoryBalanced}
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryBestValue, CategoryHighGrowth, CategoryBalanced:
		return true
	}
	return false
}

// TargetCount returns the target number of active positions for the category
func (c Category) TargetCount() int {
	switch c {
	case CategoryBestValue:
		return 4
	case CategoryHighGrowth:
		return 4
	case CategoryBalanced:
		return 2
	}
	return 0
}

// TargetShare returns the category's aggregate weight share in percent
func (c Category) TargetShare() float64 {
	return float64(c.TargetCount()) * PositionTargetWeight
}

// Status represents a position's lifecycle state
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusSold    Status = "SOLD"
	StatusRemoved Status = "REMOVED"
)

// ActionKind represents the decision taken for a ticker in one evaluation cycle
type ActionKind string

const (
	ActionAdvance  ActionKind = "ADVANCE"
	ActionHold     ActionKind = "HOLD"
	ActionWatch    ActionKind = "WATCH"
	ActionSell     ActionKind = "SELL"
	ActionNoChange ActionKind = "NO_CHANGE"
)

// Portfolio constants
//
// A full position is built over three weekly stages (3% + 3% + 4% = 10%),
// so the 4/4/2 category slots add up to 100% when fully deployed.
const (
	MaxStage             = 3
	GraceWeeks           = 2
	MaxRegionPositions   = 1
	PositionTargetWeight = 10.0
	TotalWeightBudget    = 100.0

	// WeightTolerance absorbs float rounding in the weight cap checks.
	WeightTolerance = 1e-6

	// RankUnranked marks a position absent from its category's current list.
	RankUnranked = 0
)

// StageWeight returns the weight increment in percent deployed at the given stage
func StageWeight(stage int) float64 {
	switch stage {
	case 1:
		return 3.0
	case 2:
		return 3.0
	case 3:
		return 4.0
	}
	return 0.0
}

// Position is a ledger entry, one per ticker ever held.
// Records are never physically deleted; exits only flip Status.
type Position struct {
	Ticker        string   `json:"-"`
	Category      Category `json:"category"`
	Stage         int      `json:"stage"`
	WeightPct     float64  `json:"current_weight_pct"`
	Status        Status   `json:"status"`
	EntryDate     string   `json:"entry_date"`
	EntryPrice    float64  `json:"entry_price"`
	CurrentPrice  float64  `json:"current_price"`
	CurrentRank   int      `json:"current_rank"`
	HoldWeeks     int      `json:"hold_weeks"`
	RegionFlag    bool     `json:"region_flag"`
	SoldReason    string   `json:"sold_reason,omitempty"`
	RemovalReason string   `json:"removal_reason,omitempty"`
}

// Active reports whether the position is currently held
func (p Position) Active() bool {
	return p.Status == StatusActive
}

// FullyStaged reports whether the position has completed its capital ramp
func (p Position) FullyStaged() bool {
	return p.Stage >= MaxStage
}

// Return returns the percent gain/loss since entry, or 0 without price data
func (p Position) Return() float64 {
	if p.EntryPrice <= 0 || p.CurrentPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// Candidate is one externally ranked ticker eligible for entry or retention
// this cycle. It is transient and never persisted.
type Candidate struct {
	Ticker     string   `json:"ticker"`
	Category   Category `json:"category"`
	Rank       int      `json:"rank"`
	Price      float64  `json:"price"`
	RegionFlag bool     `json:"region_flag"`
}

// Validate checks the fields the engine consumes, once, at the boundary
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Ticker) == "" {
		return fmt.Errorf("candidate has empty ticker")
	}
	if c.Ticker != strings.ToUpper(strings.TrimSpace(c.Ticker)) {
		return fmt.Errorf("candidate ticker %q is not normalized uppercase", c.Ticker)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("candidate %s has unknown category %q", c.Ticker, c.Category)
	}
	if c.Rank < 1 {
		return fmt.Errorf("candidate %s has invalid rank %d", c.Ticker, c.Rank)
	}
	if c.Price <= 0 {
		return fmt.Errorf("candidate %s has invalid price %.4f", c.Ticker, c.Price)
	}
	return nil
}

// CandidateSet holds the per-category ranked lists for one evaluation cycle.
// Lists are assumed pre-sorted by the external ranker; the engine never re-sorts.
type CandidateSet map[Category][]Candidate

// Validate checks every candidate and that ranks are strictly increasing
func (cs CandidateSet) Validate() error {
	for cat, candidates := range cs {
		if !cat.Valid() {
			return fmt.Errorf("candidate set has unknown category %q", cat)
		}
		lastRank := 0
		for _, c := range candidates {
			if err := c.Validate(); err != nil {
				return err
			}
			if c.Category != cat {
				return fmt.Errorf("candidate %s listed under %s but tagged %s", c.Ticker, cat, c.Category)
			}
			if c.Rank <= lastRank {
				return fmt.Errorf("category %s ranks not strictly increasing at %s", cat, c.Ticker)
			}
			lastRank = c.Rank
		}
	}
	return nil
}

// Find returns the candidate for ticker within the given category
func (cs CandidateSet) Find(cat Category, ticker string) (Candidate, bool) {
	for _, c := range cs[cat] {
		if c.Ticker == ticker {
			return c, true
		}
	}
	return Candidate{}, false
}

// Epoch identifies one weekly evaluation cycle as an ISO year-week token.
// The ledger stores the last reconciled epoch so a duplicate run in the
// same week is refused instead of double-advancing ramping positions.
func Epoch(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DateString formats t the way the ledger stores entry dates
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}
