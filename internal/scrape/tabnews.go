package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TabNewsPost is one entry from the TabNews contents API.
type TabNewsPost struct {
	ID            string `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	PublishedAt   string `json:"published_at"`
	Tabcoins      int    `json:"tabcoins"`
	OwnerUsername string `json:"owner_username"`
	Type          string `json:"type"`
}

// TabNewsClient reads the TabNews JSON API.
type TabNewsClient struct {
	baseURL string
	http    *http.Client
}

// NewTabNewsClient constructs a TabNewsClient.
func NewTabNewsClient() *TabNewsClient {
	return &TabNewsClient{
		baseURL: "https://www.tabnews.com.br/api/v1",
		http:    &http.Client{Timeout: httpTimeout},
	}
}

// MostRelevantPosts lists the current most relevant TabNews posts.
func (c *TabNewsClient) MostRelevantPosts(ctx context.Context) ([]TabNewsPost, error) {
	url := c.baseURL + "/contents?page=1&per_page=10&strategy=relevant"
	var posts []TabNewsPost
	if errGet := c.getJSON(ctx, url, &posts); errGet != nil {
		return nil, errGet
	}
	return posts, nil
}

// PostContent fetches the markdown body of a single post.
func (c *TabNewsClient) PostContent(ctx context.Context, user, slug string) (string, error) {
	url := fmt.Sprintf("%s/contents/%s/%s", c.baseURL, user, slug)
	var payload struct {
		Body string `json:"body"`
	}
	if errGet := c.getJSON(ctx, url, &payload); errGet != nil {
		return "", errGet
	}
	return payload.Body, nil
}

func (c *TabNewsClient) getJSON(ctx context.Context, url string, out any) error {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return fmt.Errorf("build request: %w", errReq)
	}
	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return fmt.Errorf("fetch %s: %w", url, errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("decode %s: %w", url, errDecode)
	}
	return nil
}
