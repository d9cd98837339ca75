package usecase

import (
	"strings"

	"RecipeSnap/internal/domain"
)

const (
	// Steps at or below this trimmed length carry no real instruction.
	minStepLength = 10
	// Ingredients at or below this trimmed length are placeholder noise.
	minIngredientLength = 2
)

// EvaluateCompleteness judges whether a candidate recipe is usable without
// further fallback. Pure and deterministic; the first failing check wins and
// supplies the reason.
func EvaluateCompleteness(recipe domain.Recipe, selfReportedIncomplete bool) domain.CompletenessVerdict {
	if selfReportedIncomplete {
		return domain.CompletenessVerdict{Complete: false, Reason: "Model reported the recipe as incomplete"}
	}

	if len(recipe.Steps) == 0 {
		return domain.CompletenessVerdict{Complete: false, Reason: "No preparation steps found"}
	}

	if len(recipe.Ingredients) == 0 {
		return domain.CompletenessVerdict{Complete: false, Reason: "No ingredients found"}
	}

	if !anyLongerThan(recipe.Steps, minStepLength) {
		return domain.CompletenessVerdict{Complete: false, Reason: "Steps are too short to be meaningful"}
	}

	if !anyLongerThan(recipe.Ingredients, minIngredientLength) {
		return domain.CompletenessVerdict{Complete: false, Reason: "Ingredients are too short to be meaningful"}
	}

	return domain.CompletenessVerdict{Complete: true}
}

func anyLongerThan(items []string, min int) bool {
	for _, item := range items {
		if len(strings.TrimSpace(item)) > min {
			return true
		}
	}
	return false
}
