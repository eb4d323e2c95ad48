package reconcile

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
)

// Engine computes the next lifecycle transition for every held position.
//
// The pass is pure: it works on a clone of the loaded ledger, takes no
// wall-clock input, and produces identical output for identical
// (ledger, candidates) snapshots, so re-evaluating before a save is safe.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new reconciliation engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "reconcile").Logger(),
	}
}

// Reconcile advances, holds, watches or exits every active position against
// the current candidate set
func (e *Engine) Reconcile(snapshot *ledger.Ledger, candidates domain.CandidateSet) Result {
	next := snapshot.Clone()
	var actions []Action
	var stats Stats

	for _, cat := range domain.Categories() {
		if len(candidates[cat]) == 0 {
			stats.MissingCategories = append(stats.MissingCategories, cat)
		}

		positions := next.ActiveByCategory(cat)
		sort.Slice(positions, func(i, j int) bool {
			return positions[i].Ticker < positions[j].Ticker
		})

		for _, pos := range positions {
			action := e.reconcilePosition(&pos, candidates)
			next.Positions[pos.Ticker] = pos
			actions = append(actions, action)

			switch action.Kind {
			case domain.ActionAdvance:
				stats.Advanced++
			case domain.ActionHold:
				stats.Held++
			case domain.ActionWatch:
				stats.Watched++
			case domain.ActionSell:
				stats.Sold++
			}
		}
	}

	e.log.Info().
		Int("advanced", stats.Advanced).
		Int("held", stats.Held).
		Int("watched", stats.Watched).
		Int("sold", stats.Sold).
		Msg("Reconciliation pass complete")

	return Result{Ledger: next, Actions: actions, Stats: stats}
}

// reconcilePosition applies the transition rules to a single position
func (e *Engine) reconcilePosition(pos *domain.Position, candidates domain.CandidateSet) Action {
	cand, present := candidates.Find(pos.Category, pos.Ticker)

	if pos.Stage < domain.MaxStage {
		// Ramping positions complete their scheduled entry regardless of
		// this cycle's rank: committed capital, not speculative.
		pos.Stage++
		pos.WeightPct += domain.StageWeight(pos.Stage)
		if present {
			pos.CurrentPrice = cand.Price
			pos.CurrentRank = cand.Rank
		} else {
			pos.CurrentRank = domain.RankUnranked
		}
		return e.action(pos, domain.ActionAdvance, "")
	}

	// Fully built. hold_weeks counts every post-full-stage evaluation; it is
	// deliberately not reset while the position stays inside the cutoff.
	pos.HoldWeeks++

	if len(candidates[pos.Category]) == 0 {
		// No list for the whole category this cycle means no information,
		// not a rank drop. Hold as-is.
		return e.action(pos, domain.ActionHold, "")
	}

	if present {
		pos.CurrentPrice = cand.Price
		pos.CurrentRank = cand.Rank

		if cand.Rank <= pos.Category.TargetCount() {
			return e.action(pos, domain.ActionHold, "")
		}

		if pos.HoldWeeks >= domain.GraceWeeks {
			reason := fmt.Sprintf("%s rank fell outside target (rank %d, %d weeks)",
				pos.Category, cand.Rank, pos.HoldWeeks)
			e.exit(pos, reason)
			return e.action(pos, domain.ActionSell, reason)
		}
		return e.action(pos, domain.ActionWatch, "")
	}

	// Absent from the category's list entirely
	pos.CurrentRank = domain.RankUnranked

	if pos.HoldWeeks >= domain.GraceWeeks {
		reason := fmt.Sprintf("%s dropped from candidate list", pos.Category)
		e.exit(pos, reason)
		return e.action(pos, domain.ActionSell, reason)
	}
	return e.action(pos, domain.ActionWatch, "")
}

// exit transitions the position to Sold. The record stays in the ledger for
// audit; only a fresh admission may reuse the ticker.
func (e *Engine) exit(pos *domain.Position, reason string) {
	pos.Status = domain.StatusSold
	pos.SoldReason = reason
	e.log.Info().
		Str("ticker", pos.Ticker).
		Str("category", string(pos.Category)).
		Str("reason", reason).
		Msg("Position exit")
}

func (e *Engine) action(pos *domain.Position, kind domain.ActionKind, reason string) Action {
	return Action{
		Ticker:    pos.Ticker,
		Kind:      kind,
		Category:  pos.Category,
		Stage:     pos.Stage,
		WeightPct: pos.WeightPct,
		Rank:      pos.CurrentRank,
		Reason:    reason,
	}
}
