package retrieval

import "queryresolve/internal/models"

// DefaultMaxExamplesPerType is the top-k cap applied after filtering
// (spec §4.5, max_examples_per_type).
const DefaultMaxExamplesPerType = 3

// baseBudget is the per-type top-k search size before the 2x/half
// strategy weighting and before quality/diversity filtering trims it
// down to DefaultMaxExamplesPerType.
const baseBudget = 4

// typeBudgets computes the per-data-type search limit for a strategy,
// following the 2x-favored/half-others weighting the spec prescribes.
func typeBudgets(strategy models.RetrievalStrategy) map[models.TrainingDataType]int {
	budgets := map[models.TrainingDataType]int{
		models.TrainingDDL:             baseBudget,
		models.TrainingDocumentation:   baseBudget,
		models.TrainingSQLExample:      baseBudget,
		models.TrainingQAPair:          baseBudget,
		models.TrainingDomainKnowledge: baseBudget,
	}

	half := func(t models.TrainingDataType) { budgets[t] = maxInt(1, baseBudget/2) }
	double := func(t models.TrainingDataType) { budgets[t] = baseBudget * 2 }

	switch strategy {
	case models.StrategyQAFocused:
		double(models.TrainingQAPair)
		half(models.TrainingDDL)
		half(models.TrainingDocumentation)
		half(models.TrainingSQLExample)
		half(models.TrainingDomainKnowledge)
	case models.StrategySQLFocused:
		double(models.TrainingSQLExample)
		half(models.TrainingDDL)
		half(models.TrainingDocumentation)
		half(models.TrainingQAPair)
		half(models.TrainingDomainKnowledge)
	case models.StrategyContextFocused:
		double(models.TrainingDocumentation)
		double(models.TrainingDomainKnowledge)
		half(models.TrainingSQLExample)
		half(models.TrainingQAPair)
	case models.StrategyBalanced:
		// equal budget across types; baseBudget for all, no adjustment.
	}
	return budgets
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
