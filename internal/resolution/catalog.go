package resolution

import "normlex/pkg/types"

// defaultCatalog maps each conflict type to its candidate strategies in
// priority order. Order is policy: cheaper and more decisive doctrines come
// first, so the orchestrator's greedy search stops early on strong signals.
func defaultCatalog() map[types.ConflictType][]types.ResolutionStrategy {
	return map[types.ConflictType][]types.ResolutionStrategy{
		types.ConflictDirectContradiction: {
			types.StrategyLexSuperior,
			types.StrategyLexPosterior,
			types.StrategyArbitration,
		},
		types.ConflictImplicit: {
			types.StrategyHarmonization,
			types.StrategyContextualization,
			types.StrategyMediation,
		},
		types.ConflictJurisdictionalOverlap: {
			types.StrategyLexSuperior,
			types.StrategyDelegation,
			types.StrategyContextualization,
		},
		types.ConflictTemporalInconsistency: {
			types.StrategyLexPosterior,
			types.StrategyHarmonization,
		},
		types.ConflictScopeAmbiguity: {
			types.StrategyContextualization,
			types.StrategyLexSpecialis,
			types.StrategyHarmonization,
		},
		types.ConflictAuthority: {
			types.StrategyLexSuperior,
			types.StrategyLexPosterior,
			types.StrategyArbitration,
		},
		types.ConflictPriorityDispute: {
			types.StrategyLexSuperior,
			types.StrategyArbitration,
			types.StrategyMediation,
		},
	}
}
