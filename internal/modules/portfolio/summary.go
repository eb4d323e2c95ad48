package portfolio

import (
	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
	"github.com/lynchbot/screener-trader/pkg/formulas"
)

// CategorySummary is the weight picture for one category
type CategorySummary struct {
	Category    domain.Category `json:"category"`
	Positions   int             `json:"positions"`
	TargetCount int             `json:"target_count"`
	WeightPct   float64         `json:"weight_pct"`
	TargetShare float64         `json:"target_share"`
}

// Summary is the aggregate view of the current portfolio
type Summary struct {
	InvestedWeight  float64           `json:"invested_weight"`
	AvailableWeight float64           `json:"available_weight"`
	ActiveCount     int               `json:"active_count"`
	RegionCount     int               `json:"region_count"`
	Categories      []CategorySummary `json:"categories"`
	MeanReturnPct   float64           `json:"mean_return_pct"`
	ReturnStdDev    float64           `json:"return_std_dev"`
}

// Service computes portfolio summaries from the ledger
type Service struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(store *ledger.Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("service", "portfolio").Logger(),
	}
}

// GetSummary loads the ledger and summarizes the active portfolio
func (s *Service) GetSummary() (*Summary, error) {
	l, err := s.store.Load()
	if err != nil {
		// Recoverable by contract: an unreadable ledger summarizes as empty.
		s.log.Warn().Err(err).Msg("Ledger unavailable, summarizing empty portfolio")
	}
	return Summarize(l), nil
}

// GetPositions loads the ledger and returns all active positions
func (s *Service) GetPositions() ([]domain.Position, error) {
	l, err := s.store.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("Ledger unavailable, returning no positions")
	}
	return l.Active(), nil
}

// Summarize computes the summary for a loaded ledger
func Summarize(l *ledger.Ledger) *Summary {
	active := l.Active()

	var returns, weights []float64
	for _, pos := range active {
		if pos.EntryPrice > 0 && pos.CurrentPrice > 0 {
			returns = append(returns, pos.Return())
			weights = append(weights, pos.WeightPct)
		}
	}

	invested := l.InvestedWeight()
	summary := &Summary{
		InvestedWeight:  invested,
		AvailableWeight: domain.TotalWeightBudget - invested,
		ActiveCount:     len(active),
		RegionCount:     l.RegionCount(),
		MeanReturnPct:   formulas.WeightedMean(returns, weights),
		ReturnStdDev:    formulas.StdDev(returns),
	}

	for _, cat := range domain.Categories() {
		summary.Categories = append(summary.Categories, CategorySummary{
			Category:    cat,
			Positions:   len(l.ActiveByCategory(cat)),
			TargetCount: cat.TargetCount(),
			WeightPct:   l.CategoryWeight(cat),
			TargetShare: cat.TargetShare(),
		})
	}

	return summary
}
