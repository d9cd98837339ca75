// Package pricing converts token counts into estimated monetary cost.
package pricing

// Rates holds per-million-token prices in EUR.
type Rates struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// CostEUR estimates the cost of one structuring call. Negative token counts
// are treated as zero so malformed backend metadata cannot produce negative
// spend.
func CostEUR(promptTokens, candidatesTokens int, rates Rates) float64 {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if candidatesTokens < 0 {
		candidatesTokens = 0
	}
	in := float64(promptTokens) / 1_000_000 * rates.InputPerMTok
	out := float64(candidatesTokens) / 1_000_000 * rates.OutputPerMTok
	return in + out
}
