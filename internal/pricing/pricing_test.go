package pricing

import (
	"math"
	"testing"
)

func TestCostEUR(t *testing.T) {
	t.Parallel()

	rates := Rates{InputPerMTok: 0.10, OutputPerMTok: 0.40}

	got := CostEUR(1_000_000, 500_000, rates)
	want := 0.10 + 0.20
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("cost = %f, want %f", got, want)
	}
}

func TestCostEURZeroTokens(t *testing.T) {
	t.Parallel()

	if got := CostEUR(0, 0, Rates{InputPerMTok: 1, OutputPerMTok: 1}); got != 0 {
		t.Fatalf("cost for zero tokens = %f, want 0", got)
	}
}

func TestCostEURNegativeClamped(t *testing.T) {
	t.Parallel()

	if got := CostEUR(-100, -5, Rates{InputPerMTok: 1, OutputPerMTok: 1}); got != 0 {
		t.Fatalf("cost for negative tokens = %f, want 0", got)
	}
}
