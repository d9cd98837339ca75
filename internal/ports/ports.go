package ports

import (
	"context"

	"RecipeSnap/internal/domain"
)

// PageFetcher drives a browser session against a social post and harvests
// text, metadata, comments, and a screenshot.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*domain.ScrapedPage, error)
}

// VideoFetcher obtains a local media file for a post URL, trying download
// strategies in order. The caller owns the returned path and must delete it.
type VideoFetcher interface {
	DownloadVideo(ctx context.Context, url string) (string, error)
}

// PageStructuring is the outcome of structuring fetched page evidence.
type PageStructuring struct {
	Recipe       domain.Recipe
	IsIncomplete bool
	Usage        domain.UsageMetrics
}

// VideoStructuring is the outcome of structuring a downloaded media file.
type VideoStructuring struct {
	Recipe domain.Recipe
	Usage  domain.UsageMetrics
}

// Structurer converts raw evidence into schema-conforming recipe candidates
// through a multimodal reasoning backend.
type Structurer interface {
	StructureFromPage(ctx context.Context, page *domain.ScrapedPage) (*PageStructuring, error)
	StructureFromVideo(ctx context.Context, filePath, url string) (*VideoStructuring, error)
}

// SearchQuery narrows repository searches.
type SearchQuery struct {
	Text     string
	TagIDs   []int64
	FolderID *int64
}

// RecipeRepository persists recipes with their tag and folder relations.
type RecipeRepository interface {
	Save(ctx context.Context, recipe domain.Recipe, tagIDs []int64, folderID *int64) (int64, error)
	Search(ctx context.Context, query SearchQuery) ([]domain.Recipe, error)
	Get(ctx context.Context, id int64) (domain.Recipe, error)
	Delete(ctx context.Context, id int64) error

	CreateTag(ctx context.Context, name string) (domain.Tag, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	CreateFolder(ctx context.Context, name string) (domain.Folder, error)
	ListFolders(ctx context.Context) ([]domain.Folder, error)
	DeleteFolder(ctx context.Context, id int64) error
}

// CredentialSet points at authentication material for one platform.
type CredentialSet struct {
	Platform   string
	CookieFile string
}

// CredentialStore resolves platform-scoped authentication material.
// Material for one platform never applies to another.
type CredentialStore interface {
	CredentialsFor(url string) (*CredentialSet, error)
}

// URLValidator rejects malformed or unsafe target URLs before queueing.
type URLValidator interface {
	Validate(rawURL string) error
}
