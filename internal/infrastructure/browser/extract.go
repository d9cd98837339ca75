package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// Sections are labeled so the structuring backend can weight them:
	// the meta description is known to truncate, the caption and body are
	// authoritative.
	labelCaption    = "[PRIORITY_CAPTION]"
	labelOEmbed     = "[OEMBED_TITLE]"
	labelMeta       = "[META_DESCRIPTION]"
	labelStructured = "[STRUCTURED_DATA]"
	labelBody       = "[PAGE_BODY]"

	minCommentLength = 10
	maxCommentLength = 500
	maxBodyChars     = 20000
)

var recipeKeywords = regexp.MustCompile(`(?i)(ingredient|ingrédient|recipe|recette|step|étape|cook|cuire|cuisson|bake|four|oven|min\b|minutes|gram|tbsp|tsp|cup|préparation)`)

var whitespaceExpr = regexp.MustCompile(`[ \t]+`)

// buildRawText concatenates the harvested sections in priority order, each
// tagged with a label so downstream consumers can weight trustworthiness.
func buildRawText(doc *goquery.Document, oembedTitle string) string {
	var sections []string

	if caption := pickCaption(doc); caption != "" {
		sections = append(sections, labelCaption+"\n"+caption)
	}
	if oembedTitle != "" {
		sections = append(sections, labelOEmbed+"\n"+oembedTitle)
	}
	if meta := metaDescription(doc); meta != "" {
		sections = append(sections, labelMeta+"\n"+meta)
	}
	if structured := structuredData(doc); structured != "" {
		sections = append(sections, labelStructured+"\n"+structured)
	}
	if body := bodyText(doc); body != "" {
		sections = append(sections, labelBody+"\n"+body)
	}

	return strings.Join(sections, "\n\n")
}

// pickCaption returns the longest visible text block containing
// recipe-indicating keywords, falling back to the largest heading.
func pickCaption(doc *goquery.Document) string {
	var best string
	doc.Find("h1, h2, p, li, span").Each(func(_ int, sel *goquery.Selection) {
		// Skip containers; we want leaf-ish blocks, not whole subtrees.
		if sel.Children().Length() > 3 {
			return
		}
		text := collapseWhitespace(sel.Text())
		if !recipeKeywords.MatchString(text) {
			return
		}
		if len(text) > len(best) {
			best = text
		}
	})
	if best != "" {
		return best
	}

	var heading string
	doc.Find("h1, h2").Each(func(_ int, sel *goquery.Selection) {
		text := collapseWhitespace(sel.Text())
		if len(text) > len(heading) {
			heading = text
		}
	})
	return heading
}

func metaDescription(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && content != "" {
		return strings.TrimSpace(content)
	}
	if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// structuredData joins all embedded JSON-LD blocks.
func structuredData(doc *goquery.Document) string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	return strings.Join(blocks, "\n")
}

func bodyText(doc *goquery.Document) string {
	body := doc.Find("body")
	body.Find("script, style, noscript").Remove()
	text := collapseWhitespace(body.Text())
	if len(text) > maxBodyChars {
		text = text[:maxBodyChars]
	}
	return text
}

func pageTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// sanitizeComments trims, drops out-of-bounds entries, deduplicates while
// preserving order, and caps the harvest.
func sanitizeComments(raw []string, max int) []string {
	if max <= 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	var comments []string
	for _, comment := range raw {
		comment = collapseWhitespace(comment)
		if len(comment) < minCommentLength || len(comment) > maxCommentLength {
			continue
		}
		if _, ok := seen[comment]; ok {
			continue
		}
		seen[comment] = struct{}{}
		comments = append(comments, comment)
		if len(comments) == max {
			break
		}
	}
	return comments
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespaceExpr.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
