package domain

// UsageMetrics counts tokens spent by one structuring call, plus the
// estimated cost. A request-scoped aggregate sums every call made during the
// request lifetime, including calls whose candidate was discarded.
type UsageMetrics struct {
	PromptTokens     int     `json:"promptTokens"`
	CandidatesTokens int     `json:"candidatesTokens"`
	TotalTokens      int     `json:"totalTokens"`
	CostEUR          float64 `json:"costEUR"`
}

// Add merges another usage sample into the aggregate. Addition is
// commutative and associative, so stage ordering does not matter.
func (u UsageMetrics) Add(other UsageMetrics) UsageMetrics {
	return UsageMetrics{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CandidatesTokens: u.CandidatesTokens + other.CandidatesTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		CostEUR:          u.CostEUR + other.CostEUR,
	}
}

// SumUsage folds a series of samples into a single aggregate.
func SumUsage(samples ...UsageMetrics) UsageMetrics {
	var total UsageMetrics
	for _, s := range samples {
		total = total.Add(s)
	}
	return total
}
