package rationale

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
)

// Provider supplies a human-readable justification per ticker. It is an
// external collaborator; reconciliation never depends on it.
type Provider interface {
	Reasons(ctx context.Context, actions []reconcile.Action) (map[string]string, error)
}

// FallbackReason returns the fixed deterministic reason used when no
// provider is configured or the provider fails
func FallbackReason(kind domain.ActionKind, stage int) string {
	switch kind {
	case domain.ActionAdvance:
		if stage == 1 {
			return "new entry admitted; initial stage purchased"
		}
		return "staged entry in progress; scheduled buy executed"
	case domain.ActionHold:
		return "re-ranked within target; retained"
	case domain.ActionWatch:
		return "rank slipped outside target; monitoring"
	case domain.ActionSell:
		return "rank fell outside target for consecutive cycles; exit recommended"
	case domain.ActionNoChange:
		return "no change"
	}
	return "no rationale available"
}

// Annotator fills action reasons from a provider, falling back to the
// deterministic strings on any failure
type Annotator struct {
	provider Provider // nil when rationale generation is disabled
	log      zerolog.Logger
}

// NewAnnotator creates a new annotator. provider may be nil.
func NewAnnotator(provider Provider, log zerolog.Logger) *Annotator {
	return &Annotator{
		provider: provider,
		log:      log.With().Str("component", "rationale").Logger(),
	}
}

// Annotate returns the actions with every empty Reason filled in. Reasons
// already set by the engine (exit reasons) are preserved.
func (a *Annotator) Annotate(ctx context.Context, actions []reconcile.Action) []reconcile.Action {
	var provided map[string]string
	if a.provider != nil {
		reasons, err := a.provider.Reasons(ctx, actions)
		if err != nil {
			a.log.Warn().Err(err).Msg("Rationale provider failed, using fallback reasons")
		} else {
			provided = reasons
		}
	}

	annotated := make([]reconcile.Action, len(actions))
	for i, action := range actions {
		if action.Reason == "" {
			if reason, ok := provided[action.Ticker]; ok && reason != "" {
				action.Reason = reason
			} else {
				action.Reason = FallbackReason(action.Kind, action.Stage)
			}
		}
		annotated[i] = action
	}
	return annotated
}
