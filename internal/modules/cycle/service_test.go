package cycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynchbot/screener-trader/internal/database"
	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/allocate"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
	"github.com/lynchbot/screener-trader/internal/modules/rationale"
	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
)

func newTestService(t *testing.T, tradeLog *ledger.TradeLogRepository) (*Service, *ledger.Store) {
	log := zerolog.Nop()
	store := ledger.NewStore(filepath.Join(t.TempDir(), "ledger.json"), log)
	service := NewService(
		store,
		reconcile.NewEngine(log),
		allocate.NewPlanner(log),
		rationale.NewAnnotator(nil, log),
		tradeLog,
		log,
	)
	return service, store
}

func fullCandidateSet() domain.CandidateSet {
	cs := domain.CandidateSet{}
	lists := map[domain.Category][]string{
		domain.CategoryBestValue:  {"V1", "V2", "V3", "V4"},
		domain.CategoryHighGrowth: {"G1", "G2", "G3", "G4"},
		domain.CategoryBalanced:   {"B1", "B2"},
	}
	for cat, tickers := range lists {
		for i, ticker := range tickers {
			cs[cat] = append(cs[cat], domain.Candidate{
				Ticker:   ticker,
				Category: cat,
				Rank:     i + 1,
				Price:    100.0,
			})
		}
	}
	return cs
}

func TestRun_FirstCycleAdmitsAndPersists(t *testing.T) {
	service, store := newTestService(t, nil)
	now := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

	report, err := service.Run(context.Background(), fullCandidateSet(), now)
	require.NoError(t, err)

	assert.True(t, report.LoadRecovered, "first run starts without a ledger file")
	assert.False(t, report.SaveFailed)
	assert.Equal(t, "2025-W25", report.Epoch)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 10, report.PlanStats.Admitted)
	assert.Equal(t, 30.0, report.InvestedWeight)
	assert.Len(t, report.Positions, 10)

	for _, action := range report.Actions {
		assert.NotEmpty(t, action.Reason, "every action is annotated")
	}

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-W25", saved.LastEpoch)
	assert.Len(t, saved.Active(), 10)
}

func TestRun_SameEpochRefused(t *testing.T) {
	service, _ := newTestService(t, nil)
	cs := fullCandidateSet()

	monday := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	_, err := service.Run(context.Background(), cs, monday)
	require.NoError(t, err)

	// Retry on Friday of the same ISO week
	friday := time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC)
	_, err = service.Run(context.Background(), cs, friday)
	assert.ErrorIs(t, err, ErrEpochAlreadyReconciled)
}

func TestRun_ConsecutiveEpochsRampPositions(t *testing.T) {
	service, store := newTestService(t, nil)
	cs := fullCandidateSet()
	ctx := context.Background()

	week1 := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	week2 := week1.AddDate(0, 0, 7)
	week3 := week1.AddDate(0, 0, 14)

	_, err := service.Run(ctx, cs, week1)
	require.NoError(t, err)

	report, err := service.Run(ctx, cs, week2)
	require.NoError(t, err)
	assert.False(t, report.LoadRecovered)
	assert.Equal(t, 10, report.ReconcileStats.Advanced)
	assert.Equal(t, 60.0, report.InvestedWeight)

	report, err = service.Run(ctx, cs, week3)
	require.NoError(t, err)
	assert.Equal(t, 10, report.ReconcileStats.Advanced)
	assert.Equal(t, 100.0, report.InvestedWeight, "fully deployed after three stages")

	saved, err := store.Load()
	require.NoError(t, err)
	for _, pos := range saved.Active() {
		assert.Equal(t, domain.MaxStage, pos.Stage)
		assert.Equal(t, domain.PositionTargetWeight, pos.WeightPct)
	}
}

func TestRun_InvalidCandidatesRejected(t *testing.T) {
	service, _ := newTestService(t, nil)

	bad := domain.CandidateSet{
		domain.CategoryBestValue: {
			{Ticker: "aapl", Category: domain.CategoryBestValue, Rank: 1, Price: 100},
		},
	}

	_, err := service.Run(context.Background(), bad, time.Now())
	assert.Error(t, err)
}

func TestRun_AuditTrailRecorded(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	defer db.Close()

	tradeLog := ledger.NewTradeLogRepository(db.Conn(), zerolog.Nop())
	service, _ := newTestService(t, tradeLog)

	now := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	report, err := service.Run(context.Background(), fullCandidateSet(), now)
	require.NoError(t, err)

	trades, err := tradeLog.GetByEpoch("2025-W25")
	require.NoError(t, err)
	assert.Len(t, trades, len(report.Actions))

	rec, err := tradeLog.GetLastCycle()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, report.RunID, rec.RunID)
	assert.Equal(t, 10, rec.Admitted)
	assert.Equal(t, 30.0, rec.InvestedWeight)
}

func TestRun_ExitThenReentry(t *testing.T) {
	service, store := newTestService(t, nil)
	ctx := context.Background()

	only := domain.CandidateSet{
		domain.CategoryBalanced: {
			{Ticker: "KO", Category: domain.CategoryBalanced, Rank: 1, Price: 60},
		},
	}

	week := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	_, err := service.Run(ctx, only, week)
	require.NoError(t, err)

	// Ramp to full over the next two weeks, then drop KO from the list
	// until the grace period exhausts.
	for i := 1; i <= 2; i++ {
		_, err = service.Run(ctx, only, week.AddDate(0, 0, 7*i))
		require.NoError(t, err)
	}

	empty := domain.CandidateSet{
		domain.CategoryBalanced: {
			{Ticker: "PEP", Category: domain.CategoryBalanced, Rank: 1, Price: 170},
		},
	}
	var last *Report
	for i := 3; i <= 4; i++ {
		last, err = service.Run(ctx, empty, week.AddDate(0, 0, 7*i))
		require.NoError(t, err)
	}

	saved, err := store.Load()
	require.NoError(t, err)
	ko, ok := saved.Get("KO")
	require.True(t, ok)
	assert.Equal(t, domain.StatusSold, ko.Status)
	assert.Equal(t, 1, last.ReconcileStats.Sold)

	// KO re-ranks next week and starts a fresh lifecycle
	report, err := service.Run(ctx, only, week.AddDate(0, 0, 35))
	require.NoError(t, err)
	assert.Equal(t, 1, report.PlanStats.Admitted)

	saved, err = store.Load()
	require.NoError(t, err)
	ko, _ = saved.Get("KO")
	assert.Equal(t, domain.StatusActive, ko.Status)
	assert.Equal(t, 1, ko.Stage)
}
