package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/clients/screener"
	"github.com/lynchbot/screener-trader/internal/modules/cycle"
)

// EvaluationCycleJob runs the weekly evaluation: fetch the ranked candidate
// set from the screener service, then reconcile and re-plan the portfolio.
type EvaluationCycleJob struct {
	log          zerolog.Logger
	screener     *screener.Client
	cycleService *cycle.Service
	timeout      time.Duration
}

// EvaluationCycleConfig holds configuration for the evaluation cycle job
type EvaluationCycleConfig struct {
	Log          zerolog.Logger
	Screener     *screener.Client
	CycleService *cycle.Service
	Timeout      time.Duration
}

// NewEvaluationCycleJob creates a new evaluation cycle job
func NewEvaluationCycleJob(cfg EvaluationCycleConfig) *EvaluationCycleJob {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &EvaluationCycleJob{
		log:          cfg.Log.With().Str("job", "evaluation_cycle").Logger(),
		screener:     cfg.Screener,
		cycleService: cfg.CycleService,
		timeout:      timeout,
	}
}

// Name returns the job name
func (j *EvaluationCycleJob) Name() string {
	return "evaluation_cycle"
}

// Run executes one evaluation cycle
func (j *EvaluationCycleJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting evaluation cycle")

	candidates, err := j.screener.GetCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch candidates: %w", err)
	}

	report, err := j.cycleService.Run(ctx, candidates, time.Now())
	if err != nil {
		if errors.Is(err, cycle.ErrEpochAlreadyReconciled) {
			// A retry inside the same week is a no-op, not a failure.
			j.log.Warn().Msg("Epoch already reconciled, skipping")
			return nil
		}
		return fmt.Errorf("failed to run cycle: %w", err)
	}

	if report.SaveFailed {
		j.log.Warn().
			Str("run_id", report.RunID).
			Msg("Cycle computed but not persisted; next cycle will not see these changes")
	}

	j.log.Info().
		Str("epoch", report.Epoch).
		Int("actions", len(report.Actions)).
		Int("admitted", report.PlanStats.Admitted).
		Int("sold", report.ReconcileStats.Sold).
		Float64("invested_weight", report.InvestedWeight).
		Msg("Evaluation cycle finished")

	return nil
}
