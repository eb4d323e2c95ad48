package reconcile

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
)

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func activePosition(ticker string, cat domain.Category, stage, holdWeeks int) domain.Position {
	weight := 0.0
	for s := 1; s <= stage; s++ {
		weight += domain.StageWeight(s)
	}
	return domain.Position{
		Ticker:     ticker,
		Category:   cat,
		Stage:      stage,
		WeightPct:  weight,
		Status:     domain.StatusActive,
		EntryDate:  "2025-06-02",
		EntryPrice: 100.0,
		HoldWeeks:  holdWeeks,
	}
}

func candidates(cat domain.Category, tickers ...string) domain.CandidateSet {
	cs := domain.CandidateSet{}
	for i, ticker := range tickers {
		cs[cat] = append(cs[cat], domain.Candidate{
			Ticker:   ticker,
			Category: cat,
			Rank:     i + 1,
			Price:    100.0,
		})
	}
	return cs
}

func findAction(t *testing.T, actions []Action, ticker string) Action {
	t.Helper()
	for _, a := range actions {
		if a.Ticker == ticker {
			return a
		}
	}
	t.Fatalf("No action for %s", ticker)
	return Action{}
}

func TestReconcile_RampingPositionAdvances(t *testing.T) {
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("AAPL", domain.CategoryBestValue, 1, 0)))

	cs := candidates(domain.CategoryBestValue, "AAPL")
	cs[domain.CategoryBestValue][0].Price = 110.0

	result := newTestEngine().Reconcile(l, cs)

	action := findAction(t, result.Actions, "AAPL")
	assert.Equal(t, domain.ActionAdvance, action.Kind)
	assert.Equal(t, 2, action.Stage)
	assert.Equal(t, 6.0, action.WeightPct)

	pos, _ := result.Ledger.Get("AAPL")
	assert.Equal(t, 2, pos.Stage)
	assert.Equal(t, 6.0, pos.WeightPct)
	assert.Equal(t, 110.0, pos.CurrentPrice)
	assert.Equal(t, 1, pos.CurrentRank)
	assert.Equal(t, 0, pos.HoldWeeks, "ramping positions do not accrue hold weeks")
	assert.Equal(t, 1, result.Stats.Advanced)
}

func TestReconcile_RampingAdvancesEvenWhenDropped(t *testing.T) {
	// Committed capital: a stage 2 position completes its ramp even after
	// falling off the candidate list entirely.
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("UPST", domain.CategoryHighGrowth, 2, 0)))

	result := newTestEngine().Reconcile(l, candidates(domain.CategoryHighGrowth, "OTHER"))

	action := findAction(t, result.Actions, "UPST")
	assert.Equal(t, domain.ActionAdvance, action.Kind)
	assert.Equal(t, 3, action.Stage)
	assert.Equal(t, 10.0, action.WeightPct)

	pos, _ := result.Ledger.Get("UPST")
	assert.True(t, pos.FullyStaged())
	assert.Equal(t, domain.RankUnranked, pos.CurrentRank)
	assert.Equal(t, domain.StatusActive, pos.Status)
}

func TestReconcile_FullyStagedWithinTargetHolds(t *testing.T) {
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("MSFT", domain.CategoryBestValue, 3, 4)))

	cs := candidates(domain.CategoryBestValue, "MSFT", "AAA", "BBB", "CCC")
	result := newTestEngine().Reconcile(l, cs)

	action := findAction(t, result.Actions, "MSFT")
	assert.Equal(t, domain.ActionHold, action.Kind)

	pos, _ := result.Ledger.Get("MSFT")
	assert.Equal(t, 3, pos.Stage, "fully staged never advances further")
	assert.Equal(t, 10.0, pos.WeightPct)
	assert.Equal(t, 5, pos.HoldWeeks)
	assert.Equal(t, 1, result.Stats.Held)
}

func TestReconcile_GracePeriodThenSell(t *testing.T) {
	// Fresh fully staged position slips to rank 6: one watch week, then exit.
	engine := newTestEngine()
	cs := domain.CandidateSet{
		domain.CategoryBestValue: {
			{Ticker: "AAA", Category: domain.CategoryBestValue, Rank: 1, Price: 50},
			{Ticker: "BBB", Category: domain.CategoryBestValue, Rank: 2, Price: 50},
			{Ticker: "CCC", Category: domain.CategoryBestValue, Rank: 3, Price: 50},
			{Ticker: "DDD", Category: domain.CategoryBestValue, Rank: 4, Price: 50},
			{Ticker: "EEE", Category: domain.CategoryBestValue, Rank: 5, Price: 50},
			{Ticker: "SLIP", Category: domain.CategoryBestValue, Rank: 6, Price: 80},
		},
	}

	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("SLIP", domain.CategoryBestValue, 3, 0)))

	// Week one outside the cutoff: watched, not sold
	first := engine.Reconcile(l, cs)
	action := findAction(t, first.Actions, "SLIP")
	assert.Equal(t, domain.ActionWatch, action.Kind)

	pos, _ := first.Ledger.Get("SLIP")
	assert.Equal(t, domain.StatusActive, pos.Status)
	assert.Equal(t, 1, pos.HoldWeeks)
	assert.Equal(t, 6, pos.CurrentRank)

	// Week two: grace exhausted, exit
	second := engine.Reconcile(first.Ledger, cs)
	action = findAction(t, second.Actions, "SLIP")
	assert.Equal(t, domain.ActionSell, action.Kind)
	assert.Contains(t, action.Reason, "rank fell outside target")

	pos, _ = second.Ledger.Get("SLIP")
	assert.Equal(t, domain.StatusSold, pos.Status)
	assert.NotEmpty(t, pos.SoldReason)
	assert.Equal(t, 1, second.Stats.Sold)
}

func TestReconcile_LongHeldPositionSellsOnFirstSlip(t *testing.T) {
	// Hold weeks accrue across healthy cycles, so a seasoned position gets
	// no fresh grace window when its rank finally slips.
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("OLD", domain.CategoryBalanced, 3, 8)))

	cs := domain.CandidateSet{
		domain.CategoryBalanced: {
			{Ticker: "AAA", Category: domain.CategoryBalanced, Rank: 1, Price: 50},
			{Ticker: "BBB", Category: domain.CategoryBalanced, Rank: 2, Price: 50},
			{Ticker: "OLD", Category: domain.CategoryBalanced, Rank: 3, Price: 50},
		},
	}

	result := newTestEngine().Reconcile(l, cs)

	action := findAction(t, result.Actions, "OLD")
	assert.Equal(t, domain.ActionSell, action.Kind)
}

func TestReconcile_DroppedFromListThenSell(t *testing.T) {
	engine := newTestEngine()
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("GONE", domain.CategoryHighGrowth, 3, 0)))

	cs := candidates(domain.CategoryHighGrowth, "OTHER")

	first := engine.Reconcile(l, cs)
	action := findAction(t, first.Actions, "GONE")
	assert.Equal(t, domain.ActionWatch, action.Kind)

	pos, _ := first.Ledger.Get("GONE")
	assert.Equal(t, domain.RankUnranked, pos.CurrentRank)

	second := engine.Reconcile(first.Ledger, cs)
	action = findAction(t, second.Actions, "GONE")
	assert.Equal(t, domain.ActionSell, action.Kind)
	assert.Contains(t, action.Reason, "dropped from candidate list")
}

func TestReconcile_MissingCategoryListHolds(t *testing.T) {
	// A category with no list at all carries no signal; nothing is sold.
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("KEEP", domain.CategoryBalanced, 3, 9)))

	result := newTestEngine().Reconcile(l, domain.CandidateSet{})

	action := findAction(t, result.Actions, "KEEP")
	assert.Equal(t, domain.ActionHold, action.Kind)

	pos, _ := result.Ledger.Get("KEEP")
	assert.Equal(t, domain.StatusActive, pos.Status)
	assert.Contains(t, result.Stats.MissingCategories, domain.CategoryBalanced)
}

func TestReconcile_SoldPositionsIgnored(t *testing.T) {
	l := ledger.NewLedger()
	sold := activePosition("DEAD", domain.CategoryBestValue, 3, 5)
	sold.Status = domain.StatusSold
	require.NoError(t, l.Upsert(sold))

	result := newTestEngine().Reconcile(l, candidates(domain.CategoryBestValue, "DEAD"))

	assert.Empty(t, result.Actions)
	pos, _ := result.Ledger.Get("DEAD")
	assert.Equal(t, domain.StatusSold, pos.Status)
}

func TestReconcile_DoesNotMutateSnapshot(t *testing.T) {
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("AAPL", domain.CategoryBestValue, 1, 0)))

	_ = newTestEngine().Reconcile(l, candidates(domain.CategoryBestValue, "AAPL"))

	pos, _ := l.Get("AAPL")
	assert.Equal(t, 1, pos.Stage, "input snapshot must stay untouched")
	assert.Equal(t, 3.0, pos.WeightPct)
}

func TestReconcile_Deterministic(t *testing.T) {
	engine := newTestEngine()
	l := ledger.NewLedger()
	require.NoError(t, l.Upsert(activePosition("AAA", domain.CategoryBestValue, 2, 0)))
	require.NoError(t, l.Upsert(activePosition("BBB", domain.CategoryBestValue, 3, 1)))
	require.NoError(t, l.Upsert(activePosition("CCC", domain.CategoryBalanced, 3, 0)))

	cs := candidates(domain.CategoryBestValue, "AAA", "BBB")

	first := engine.Reconcile(l, cs)
	second := engine.Reconcile(l, cs)

	require.Equal(t, len(first.Actions), len(second.Actions))
	for i := range first.Actions {
		assert.Equal(t, first.Actions[i], second.Actions[i])
	}
	assert.Equal(t, first.Stats, second.Stats)
}
