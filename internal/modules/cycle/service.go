package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/allocate"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
	"github.com/lynchbot/screener-trader/internal/modules/rationale"
	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
)

// ErrEpochAlreadyReconciled is returned when the ledger was already
// reconciled for the requested epoch. Running twice in one week would
// double-advance every ramping position, so the duplicate run is refused.
var ErrEpochAlreadyReconciled = errors.New("epoch already reconciled")

// Service runs one evaluation cycle: load the ledger, reconcile against the
// candidate set, fill open slots, annotate, then save. The ledger is either
// saved with the full cycle result or left untouched; there is no partial
// save.
type Service struct {
	store     *ledger.Store
	engine    *reconcile.Engine
	planner   *allocate.Planner
	annotator *rationale.Annotator
	tradeLog  *ledger.TradeLogRepository
	log       zerolog.Logger
}

// NewService creates a new cycle service. tradeLog may be nil to disable
// audit logging.
func NewService(
	store *ledger.Store,
	engine *reconcile.Engine,
	planner *allocate.Planner,
	annotator *rationale.Annotator,
	tradeLog *ledger.TradeLogRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		planner:   planner,
		annotator: annotator,
		tradeLog:  tradeLog,
		log:       log.With().Str("service", "cycle").Logger(),
	}
}

// Run executes one evaluation cycle for the epoch containing now
func (s *Service) Run(ctx context.Context, candidates domain.CandidateSet, now time.Time) (*Report, error) {
	if err := candidates.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate candidate set: %w", err)
	}

	epoch := domain.Epoch(now)
	runID := uuid.New().String()
	report := &Report{RunID: runID, Epoch: epoch}

	snapshot, err := s.store.Load()
	if err != nil {
		var loadErr *ledger.LoadError
		if !errors.As(err, &loadErr) {
			return nil, fmt.Errorf("failed to load ledger: %w", err)
		}
		// Recoverable: proceed with an empty portfolio.
		s.log.Warn().Err(loadErr).Msg("Ledger load recovered, treating portfolio as empty")
		report.LoadRecovered = true
	}

	if snapshot.LastEpoch == epoch {
		s.log.Warn().Str("epoch", epoch).Msg("Duplicate run for epoch refused")
		return nil, ErrEpochAlreadyReconciled
	}

	reconciled := s.engine.Reconcile(snapshot, candidates)
	planned := s.planner.Plan(reconciled.Ledger, candidates, domain.DateString(now))

	final := planned.Ledger
	final.LastEpoch = epoch

	actions := append(reconciled.Actions, planned.Actions...)
	actions = s.annotator.Annotate(ctx, actions)

	s.assertInvariants(snapshot, final)

	report.Actions = actions
	report.ReconcileStats = reconciled.Stats
	report.PlanStats = planned.Stats
	report.InvestedWeight = final.InvestedWeight()
	report.Positions = final.Active()

	if err := s.store.Save(final); err != nil {
		// The computed result is still returned so reporting can proceed,
		// but the next cycle will not see these changes.
		s.log.Error().Err(err).Msg("Ledger save failed, cycle results are in-memory only")
		report.SaveFailed = true
	}

	s.recordAudit(report, final, now)

	s.log.Info().
		Str("run_id", runID).
		Str("epoch", epoch).
		Int("actions", len(actions)).
		Float64("invested_weight", report.InvestedWeight).
		Bool("save_failed", report.SaveFailed).
		Msg("Cycle complete")

	return report, nil
}

// recordAudit writes the cycle and trade rows; failures are logged only
func (s *Service) recordAudit(report *Report, final *ledger.Ledger, now time.Time) {
	if s.tradeLog == nil {
		return
	}

	entries := make([]ledger.TradeLogEntry, 0, len(report.Actions))
	for _, action := range report.Actions {
		price := 0.0
		if pos, ok := final.Get(action.Ticker); ok {
			price = pos.CurrentPrice
		}
		entries = append(entries, ledger.TradeLogEntry{
			Ticker:    action.Ticker,
			Action:    action.Kind,
			Category:  action.Category,
			Stage:     action.Stage,
			WeightPct: action.WeightPct,
			Rank:      action.Rank,
			Price:     price,
			Reason:    action.Reason,
		})
	}

	record := ledger.CycleRecord{
		RunID:          report.RunID,
		Epoch:          report.Epoch,
		RanAt:          now.Format(time.RFC3339),
		InvestedWeight: report.InvestedWeight,
		Admitted:       report.PlanStats.Admitted,
		Sold:           report.ReconcileStats.Sold,
		SaveFailed:     report.SaveFailed,
	}

	if err := s.tradeLog.RecordCycle(record, entries); err != nil {
		s.log.Error().Err(err).Msg("Failed to record cycle audit")
	}
}

// assertInvariants panics on any violated portfolio invariant. A violation
// here is a planning bug; clamping would only mask it.
func (s *Service) assertInvariants(before, after *ledger.Ledger) {
	total := after.InvestedWeight()
	if total > domain.TotalWeightBudget+domain.WeightTolerance {
		panic(fmt.Sprintf("invariant violated: total invested weight %.4f exceeds %.0f", total, domain.TotalWeightBudget))
	}

	for _, cat := range domain.Categories() {
		weight := after.CategoryWeight(cat)
		if weight > cat.TargetShare()+domain.WeightTolerance {
			panic(fmt.Sprintf("invariant violated: category %s weight %.4f exceeds share %.0f", cat, weight, cat.TargetShare()))
		}
	}

	if count := after.RegionCount(); count > domain.MaxRegionPositions {
		panic(fmt.Sprintf("invariant violated: %d region-flagged positions exceed cap %d", count, domain.MaxRegionPositions))
	}

	for ticker, pos := range after.Positions {
		if pos.Stage < 1 || pos.Stage > domain.MaxStage {
			panic(fmt.Sprintf("invariant violated: %s stage %d outside 1..%d", ticker, pos.Stage, domain.MaxStage))
		}
		prev, existed := before.Positions[ticker]
		if existed && prev.Active() && pos.Active() && pos.Stage < prev.Stage {
			panic(fmt.Sprintf("invariant violated: %s stage regressed %d -> %d", ticker, prev.Stage, pos.Stage))
		}
	}
}
