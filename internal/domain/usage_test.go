package domain

import (
	"math"
	"testing"
)

func TestUsageAddAssociative(t *testing.T) {
	t.Parallel()

	a := UsageMetrics{PromptTokens: 100, CandidatesTokens: 40, TotalTokens: 140, CostEUR: 0.002}
	b := UsageMetrics{PromptTokens: 250, CandidatesTokens: 90, TotalTokens: 340, CostEUR: 0.005}
	c := UsageMetrics{PromptTokens: 10, CandidatesTokens: 5, TotalTokens: 15, CostEUR: 0.0001}

	stepwise := a.Add(b).Add(c)
	direct := SumUsage(a, b, c)

	if !usageEqual(stepwise, direct) {
		t.Fatalf("stepwise %+v != direct %+v", stepwise, direct)
	}
}

func TestUsageAddOrderIndependent(t *testing.T) {
	t.Parallel()

	a := UsageMetrics{PromptTokens: 7, CandidatesTokens: 3, TotalTokens: 10, CostEUR: 0.01}
	b := UsageMetrics{PromptTokens: 11, CandidatesTokens: 2, TotalTokens: 13, CostEUR: 0.03}

	if !usageEqual(a.Add(b), b.Add(a)) {
		t.Fatalf("a+b != b+a")
	}
}

func TestSumUsageEmpty(t *testing.T) {
	t.Parallel()

	if got := SumUsage(); got != (UsageMetrics{}) {
		t.Fatalf("SumUsage() = %+v, want zero value", got)
	}
}

func usageEqual(a, b UsageMetrics) bool {
	return a.PromptTokens == b.PromptTokens &&
		a.CandidatesTokens == b.CandidatesTokens &&
		a.TotalTokens == b.TotalTokens &&
		math.Abs(a.CostEUR-b.CostEUR) < 1e-12
}
