package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"RecipeSnap/internal/platform"
)

// oembedClient pulls the post title from a platform's public oEmbed
// endpoint. Strictly best-effort: the browser harvest stays authoritative.
type oembedClient struct {
	client *http.Client
}

func newOEmbedClient(client *http.Client) *oembedClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &oembedClient{client: client}
}

type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// Title fetches the oEmbed title for postURL. Returns "" without error when
// the platform exposes no endpoint.
func (c *oembedClient) Title(ctx context.Context, p platform.Platform, postURL string) (string, error) {
	if c == nil || p.OEmbed == "" {
		return "", nil
	}

	endpoint, err := url.Parse(p.OEmbed)
	if err != nil {
		return "", fmt.Errorf("oembed endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("url", postURL)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oembed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed returned %s", resp.Status)
	}

	var payload oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode oembed: %w", err)
	}

	return payload.Title, nil
}
