// Package scrape fetches articles from external publishers: TechCrunch via
// HTML scraping and TabNews via its JSON API. All calls carry a fixed HTTP
// timeout; callers decide what to do with failures.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// httpTimeout bounds every outbound fetch.
const httpTimeout = 30 * time.Second

// Post is one scraped publisher entry. Content is empty until the article
// body is fetched separately.
type Post struct {
	Category      string `json:"category"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Slug          string `json:"slug"`
	PublishedAt   string `json:"published_at"`
	OwnerUsername string `json:"owner_username"`
	Content       string `json:"content,omitempty"`
}

// TechCrunchClient scrapes techcrunch.com listing and article pages.
type TechCrunchClient struct {
	baseURL string
	http    *http.Client
}

// NewTechCrunchClient constructs a TechCrunchClient.
func NewTechCrunchClient() *TechCrunchClient {
	return &TechCrunchClient{
		baseURL: "https://techcrunch.com",
		http:    &http.Client{Timeout: httpTimeout},
	}
}

// LatestPosts scrapes the latest-articles listing page.
func (c *TechCrunchClient) LatestPosts(ctx context.Context) ([]Post, error) {
	doc, errFetch := c.fetchDocument(ctx, c.baseURL+"/latest/")
	if errFetch != nil {
		return nil, errFetch
	}

	var posts []Post
	doc.Find("div.loop-card--post-type-post").Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find("a.loop-card__title-link").First()
		url, _ := titleLink.Attr("href")

		slug := ""
		if url != "" {
			parts := strings.Split(strings.TrimSuffix(url, "/"), "/")
			slug = parts[len(parts)-1]
		}

		publishedAt, _ := card.Find("time.loop-card__time").First().Attr("datetime")

		posts = append(posts, Post{
			Category:      strings.TrimSpace(card.Find("a.loop-card__cat").First().Text()),
			Title:         strings.TrimSpace(titleLink.Text()),
			URL:           url,
			Slug:          slug,
			PublishedAt:   publishedAt,
			OwnerUsername: strings.TrimSpace(card.Find("a.loop-card__author").First().Text()),
		})
	})
	return posts, nil
}

// PostContent fetches an article page and renders its body as markdown.
func (c *TechCrunchClient) PostContent(ctx context.Context, url string) (string, error) {
	doc, errFetch := c.fetchDocument(ctx, url)
	if errFetch != nil {
		return "", errFetch
	}

	content := doc.Find("div.entry-content").First()
	if content.Length() == 0 {
		return "", nil
	}
	return renderMarkdown(content), nil
}

func (c *TechCrunchClient) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return nil, fmt.Errorf("build request: %w", errReq)
	}
	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	doc, errParse := goquery.NewDocumentFromReader(resp.Body)
	if errParse != nil {
		return nil, fmt.Errorf("parse %s: %w", url, errParse)
	}
	return doc, nil
}

// renderMarkdown flattens an article body into markdown, keeping headings,
// paragraphs, emphasis and list items.
func renderMarkdown(content *goquery.Selection) string {
	var out []string
	content.Find("h1, h2, h3, h4, h5, h6, p, li").Each(func(_ int, node *goquery.Selection) {
		text := strings.TrimSpace(node.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(node) {
		case "h1":
			out = append(out, "\n# "+text+"\n")
		case "h2":
			out = append(out, "\n## "+text+"\n")
		case "h3":
			out = append(out, "\n### "+text+"\n")
		case "h4", "h5", "h6":
			out = append(out, "\n#### "+text+"\n")
		case "p":
			out = append(out, text+"\n\n")
		case "li":
			out = append(out, "- "+text+"\n")
		}
	})
	return strings.TrimSpace(strings.Join(out, ""))
}
