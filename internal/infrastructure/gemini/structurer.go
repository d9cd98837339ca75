// Package gemini structures raw post evidence into recipe candidates using
// the Gemini multimodal API with a constrained JSON response schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"RecipeSnap/internal/config"
	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/ports"
	"RecipeSnap/internal/pricing"
)

// inlineVideoLimit is the largest media payload sent inline with the prompt.
// Bigger files go through the Files API instead.
const inlineVideoLimit = 15 << 20

const uploadPollInterval = 2 * time.Second

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Structurer implements ports.Structurer on top of the Gemini API.
type Structurer struct {
	client   *genai.Client
	model    string
	rates    pricing.Rates
	logger   *slog.Logger
	generate generateFunc
}

var _ ports.Structurer = (*Structurer)(nil)

// NewStructurer builds a Gemini-backed structurer from configuration.
func NewStructurer(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Structurer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	s := &Structurer{
		client: client,
		model:  cfg.Model,
		rates: pricing.Rates{
			InputPerMTok:  cfg.InputPricePerMTok,
			OutputPerMTok: cfg.OutputPricePerMTok,
		},
		logger: logger,
	}
	s.generate = func(ctx context.Context, model string, contents []*genai.Content, gcfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, model, contents, gcfg)
	}
	return s, nil
}

// recipeSchema constrains the model output so parsing never depends on
// prompt compliance alone.
var recipeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString},
		"ingredients": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"steps":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"tips":        {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"servings":    {Type: genai.TypeString},
		"prepTime":    {Type: genai.TypeString},
		"cookTime":    {Type: genai.TypeString},
		"isIncomplete": {
			Type:        genai.TypeBoolean,
			Description: "true when the evidence does not contain the full recipe",
		},
	},
	Required: []string{"title", "ingredients", "steps", "isIncomplete"},
}

const pagePrompt = `You are extracting a cooking recipe from a social media post.
The text below is organized into labeled sections; earlier sections are more
reliable than later ones. A screenshot of the post may be attached as extra
evidence. User comments sometimes contain the full recipe when the caption
does not.

Extract the recipe faithfully. Do not invent ingredients or steps that are
not supported by the evidence. Keep the original language of the post.
Set isIncomplete to true when the post only teases the recipe (for example
"full recipe on my website" or "recipe in my bio") or when preparation steps
are clearly missing.`

const videoPrompt = `You are extracting a cooking recipe from a short cooking
video. Watch the video, read any on-screen text, and listen to the narration.

Extract the recipe faithfully. Do not invent ingredients or steps that are
not shown or spoken. Keep the original language of the video.
Set isIncomplete to true only when the video clearly does not demonstrate the
full preparation.`

// StructureFromPage structures scraped page evidence into a recipe candidate.
func (s *Structurer) StructureFromPage(ctx context.Context, page *domain.ScrapedPage) (*ports.PageStructuring, error) {
	if page == nil {
		return nil, domain.StructuringError{Err: errors.New("no page evidence")}
	}

	parts := []*genai.Part{genai.NewPartFromText(pagePrompt)}
	parts = append(parts, genai.NewPartFromText(pageEvidence(page)))
	if len(page.Screenshot) > 0 {
		parts = append(parts, genai.NewPartFromBytes(page.Screenshot, "image/png"))
	}

	payload, usage, err := s.invoke(ctx, parts)
	if err != nil {
		return nil, err
	}

	recipe := payload.toRecipe(page.SourceURL)
	return &ports.PageStructuring{
		Recipe:       recipe,
		IsIncomplete: payload.IsIncomplete,
		Usage:        usage,
	}, nil
}

// StructureFromVideo structures a downloaded media file into a recipe
// candidate. Small files travel inline; large ones go through the Files API.
func (s *Structurer) StructureFromVideo(ctx context.Context, filePath, url string) (*ports.VideoStructuring, error) {
	mediaPart, err := s.mediaPart(ctx, filePath)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(videoPrompt),
		mediaPart,
	}

	payload, usage, err := s.invoke(ctx, parts)
	if err != nil {
		return nil, err
	}

	return &ports.VideoStructuring{
		Recipe: payload.toRecipe(url),
		Usage:  usage,
	}, nil
}

func (s *Structurer) invoke(ctx context.Context, parts []*genai.Part) (recipePayload, domain.UsageMetrics, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recipeSchema,
		Temperature:      genai.Ptr[float32](0.2),
	}

	resp, err := s.generate(ctx, s.model, contents, cfg)
	if err != nil {
		return recipePayload{}, domain.UsageMetrics{}, domain.StructuringError{
			RateLimited: isRateLimited(err),
			Err:         err,
		}
	}

	usage := usageFrom(resp, s.rates)

	payload, err := decodeRecipe(resp.Text())
	if err != nil {
		return recipePayload{}, usage, domain.StructuringError{Err: err}
	}
	return payload, usage, nil
}

// mediaPart prepares the video part of the prompt, uploading when the file is
// too large to inline.
func (s *Structurer) mediaPart(ctx context.Context, filePath string) (*genai.Part, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, domain.StructuringError{Err: fmt.Errorf("stat media file: %w", err)}
	}

	mime := videoMIME(filePath)

	if info.Size() <= inlineVideoLimit {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, domain.StructuringError{Err: fmt.Errorf("read media file: %w", err)}
		}
		return genai.NewPartFromBytes(data, mime), nil
	}

	file, err := s.uploadAndWait(ctx, filePath, mime)
	if err != nil {
		return nil, domain.StructuringError{RateLimited: isRateLimited(err), Err: err}
	}
	return genai.NewPartFromURI(file.URI, mime), nil
}

// uploadAndWait pushes the file through the Files API and polls until the
// backend finishes processing it.
func (s *Structurer) uploadAndWait(ctx context.Context, filePath, mime string) (*genai.File, error) {
	file, err := s.client.Files.UploadFromPath(ctx, filePath, &genai.UploadFileConfig{MIMEType: mime})
	if err != nil {
		return nil, fmt.Errorf("upload media file: %w", err)
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uploadPollInterval):
		}
		file, err = s.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("poll uploaded file: %w", err)
		}
	}
	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("uploaded file entered state %s", file.State)
	}
	return file, nil
}

// pageEvidence flattens scraped evidence into the model input, comments last.
func pageEvidence(page *domain.ScrapedPage) string {
	var b strings.Builder
	b.WriteString(page.RawText)
	if len(page.Comments) > 0 {
		b.WriteString("\n\n[USER_COMMENTS]\n")
		for _, comment := range page.Comments {
			b.WriteString("- ")
			b.WriteString(comment)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// recipePayload mirrors the response schema.
type recipePayload struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Steps        []string `json:"steps"`
	Tips         []string `json:"tips"`
	Servings     string   `json:"servings"`
	PrepTime     string   `json:"prepTime"`
	CookTime     string   `json:"cookTime"`
	IsIncomplete bool     `json:"isIncomplete"`
}

func (p recipePayload) toRecipe(sourceURL string) domain.Recipe {
	return domain.Recipe{
		Title:       strings.TrimSpace(p.Title),
		Ingredients: cleanList(p.Ingredients),
		Steps:       cleanList(p.Steps),
		Tips:        cleanList(p.Tips),
		Servings:    strings.TrimSpace(p.Servings),
		PrepTime:    strings.TrimSpace(p.PrepTime),
		CookTime:    strings.TrimSpace(p.CookTime),
		SourceURL:   sourceURL,
	}
}

// decodeRecipe parses the model response, stripping markdown fences some
// models wrap around JSON despite the response MIME type.
func decodeRecipe(text string) (recipePayload, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return recipePayload{}, errors.New("empty model response")
	}

	var payload recipePayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return recipePayload{}, fmt.Errorf("decode model response: %w", err)
	}
	return payload, nil
}

// cleanList trims entries and drops empties, always returning a non-nil slice.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func usageFrom(resp *genai.GenerateContentResponse, rates pricing.Rates) domain.UsageMetrics {
	if resp == nil || resp.UsageMetadata == nil {
		return domain.UsageMetrics{}
	}
	meta := resp.UsageMetadata
	usage := domain.UsageMetrics{
		PromptTokens:     int(meta.PromptTokenCount),
		CandidatesTokens: int(meta.CandidatesTokenCount),
		TotalTokens:      int(meta.TotalTokenCount),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CandidatesTokens
	}
	usage.CostEUR = pricing.CostEUR(usage.PromptTokens, usage.CandidatesTokens, rates)
	return usage
}

// isRateLimited recognizes quota exhaustion in both the typed API error and
// its string form.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429")
}

func videoMIME(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}
