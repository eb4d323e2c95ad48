package allocate

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
)

// scarcityFactor makes category scarcity dominate candidate rank in the
// admission priority score.
const scarcityFactor = 100.0

// Stats summarizes one planning pass, including why candidates were skipped
type Stats struct {
	Admitted      int `json:"admitted"`
	SkippedBudget int `json:"skipped_budget"`
	SkippedSlot   int `json:"skipped_slot"`
	SkippedRegion int `json:"skipped_region"`
}

// Result is the outcome of one planning pass
type Result struct {
	Ledger  *ledger.Ledger
	Actions []reconcile.Action
	Stats   Stats
}

type scoredCandidate struct {
	candidate domain.Candidate
	priority  float64
}

// Planner fills the remaining weight budget with new entries after
// reconciliation, subject to capital, per-category slot and region
// concentration constraints
type Planner struct {
	log zerolog.Logger
}

// NewPlanner creates a new allocation planner
func NewPlanner(log zerolog.Logger) *Planner {
	return &Planner{
		log: log.With().Str("component", "allocate").Logger(),
	}
}

// Plan admits new candidates into the reconciled ledger. Like the engine it
// works on a clone, so re-running on the same snapshot yields the same plan.
func (p *Planner) Plan(snapshot *ledger.Ledger, candidates domain.CandidateSet, entryDate string) Result {
	next := snapshot.Clone()
	var stats Stats
	var actions []reconcile.Action

	pool := p.buildPool(next, candidates)

	availableWeight := domain.TotalWeightBudget - next.InvestedWeight()
	regionCount := next.RegionCount()
	slots := make(map[domain.Category]int)
	for _, cat := range domain.Categories() {
		slots[cat] = cat.TargetCount() - len(next.ActiveByCategory(cat))
	}

	for _, sc := range pool {
		cand := sc.candidate

		if availableWeight < domain.StageWeight(1) {
			// Partial budget stays unused; never fractionally allocated.
			stats.SkippedBudget++
			break
		}
		if slots[cand.Category] <= 0 {
			stats.SkippedSlot++
			continue
		}
		if cand.RegionFlag && regionCount >= domain.MaxRegionPositions {
			stats.SkippedRegion++
			p.log.Info().
				Str("ticker", cand.Ticker).
				Msg("Region concentration cap reached, candidate skipped")
			continue
		}

		pos := domain.Position{
			Ticker:       cand.Ticker,
			Category:     cand.Category,
			Stage:        1,
			WeightPct:    domain.StageWeight(1),
			Status:       domain.StatusActive,
			EntryDate:    entryDate,
			EntryPrice:   cand.Price,
			CurrentPrice: cand.Price,
			CurrentRank:  cand.Rank,
			RegionFlag:   cand.RegionFlag,
		}
		// A re-entered ticker starts a fresh lifecycle; the prior terminal
		// record is superseded here and survives in the trade log.
		next.Positions[cand.Ticker] = pos

		availableWeight -= pos.WeightPct
		slots[cand.Category]--
		if cand.RegionFlag {
			regionCount++
		}
		stats.Admitted++

		actions = append(actions, reconcile.Action{
			Ticker:    cand.Ticker,
			Kind:      domain.ActionAdvance,
			Category:  cand.Category,
			Stage:     pos.Stage,
			WeightPct: pos.WeightPct,
			Rank:      cand.Rank,
		})
	}

	p.log.Info().
		Int("admitted", stats.Admitted).
		Int("skipped_slot", stats.SkippedSlot).
		Int("skipped_region", stats.SkippedRegion).
		Float64("remaining_weight", availableWeight).
		Msg("Allocation pass complete")

	return Result{Ledger: next, Actions: actions, Stats: stats}
}

// buildPool collects admissible candidates from every category with open
// slots and orders them by descending priority. Scarcer categories score
// higher; within a category, better rank wins.
func (p *Planner) buildPool(l *ledger.Ledger, candidates domain.CandidateSet) []scoredCandidate {
	var pool []scoredCandidate

	for _, cat := range domain.Categories() {
		openSlots := cat.TargetCount() - len(l.ActiveByCategory(cat))
		if openSlots <= 0 {
			continue
		}

		taken := 0
		for _, cand := range candidates[cat] {
			if taken >= cat.TargetCount() {
				break
			}
			if existing, ok := l.Get(cand.Ticker); ok && existing.Active() {
				continue
			}
			pool = append(pool, scoredCandidate{
				candidate: cand,
				priority:  float64(openSlots)*scarcityFactor + float64(cat.TargetCount()-cand.Rank),
			})
			taken++
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].priority != pool[j].priority {
			return pool[i].priority > pool[j].priority
		}
		return pool[i].candidate.Ticker < pool[j].candidate.Ticker
	})

	return pool
}
