package domain

import "time"

// ExtractionMethod identifies which pipeline stage produced the final recipe.
type ExtractionMethod string

const (
	MethodWebScraping ExtractionMethod = "web_scraping"
	MethodVideoAI     ExtractionMethod = "video_ai"
)

// Recipe is a structured extraction result. ID is assigned only once the
// recipe has been persisted.
type Recipe struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	Ingredients []string  `json:"ingredients"`
	Steps       []string  `json:"steps"`
	Servings    string    `json:"servings,omitempty"`
	PrepTime    string    `json:"prepTime,omitempty"`
	CookTime    string    `json:"cookTime,omitempty"`
	Tips        []string  `json:"tips"`
	SourceURL   string    `json:"sourceUrl"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// HasSteps reports whether the candidate carries at least one preparation step.
func (r Recipe) HasSteps() bool {
	return len(r.Steps) > 0
}

// ScrapedPage bundles everything harvested from a social post in one browser
// session. Owned by a single pipeline run and discarded after structuring.
type ScrapedPage struct {
	RawText    string
	Comments   []string
	Screenshot []byte
	SourceURL  string
	PageTitle  string
}

// CompletenessVerdict is the judgment of whether a candidate recipe is usable
// without invoking the fallback path. Derived, never stored.
type CompletenessVerdict struct {
	Complete bool
	Reason   string
}

// PipelineResult is the terminal artifact of one extraction request.
type PipelineResult struct {
	Recipe Recipe           `json:"recipe"`
	Method ExtractionMethod `json:"method"`
	Usage  UsageMetrics     `json:"usage"`
}

// Tag labels persisted recipes; recipes relate to zero or more tags.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Folder groups persisted recipes; a recipe belongs to at most one folder.
type Folder struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
