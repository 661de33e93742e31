package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultFirecrawlBaseURL is the hosted Firecrawl endpoint. Self-hosted
// instances override it via config.
const DefaultFirecrawlBaseURL = "https://api.firecrawl.dev"

// FirecrawlProvider searches and scrapes the web through the Firecrawl
// /v1/search API.
type FirecrawlProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewFirecrawl(baseURL, apiKey string) *FirecrawlProvider {
	if baseURL == "" {
		baseURL = DefaultFirecrawlBaseURL
	}
	return &FirecrawlProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{},
	}
}

type firecrawlRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit"`
	Timeout       int64                  `json:"timeout"`
	ScrapeOptions map[string]interface{} `json:"scrapeOptions"`
}

type firecrawlItem struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown"`
}

type firecrawlResponse struct {
	Success bool            `json:"success"`
	Data    []firecrawlItem `json:"data"`
	Error   string          `json:"error"`
}

func (p *FirecrawlProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	reqBody := firecrawlRequest{
		Query:   query,
		Limit:   opts.Limit,
		Timeout: opts.Timeout.Milliseconds(),
		ScrapeOptions: map[string]interface{}{
			"formats":         []string{opts.Format},
			"onlyMainContent": opts.MainContentOnly,
			"waitFor":         opts.RenderWait.Milliseconds(),
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/search", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firecrawl request failed: %w", classifyErr(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", classifyErr(err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firecrawl returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed firecrawlResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("firecrawl search failed: %s", parsed.Error)
	}

	results := make([]Result, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.URL == "" {
			continue
		}
		content := item.Markdown
		if content == "" {
			content = item.Description
		}
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.URL,
			Content: content,
		})
	}

	return results, nil
}
