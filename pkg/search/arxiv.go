package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultArxivBaseURL is the public arXiv Atom API endpoint.
const DefaultArxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivProvider searches arXiv and returns paper abstracts as content.
// When an OCR client is attached, the PDF of each hit is scraped to
// markdown and replaces the abstract, falling back to the abstract if
// scraping fails.
type ArxivProvider struct {
	BaseURL string
	Client  *http.Client
	OCR     *OCRClient
}

func NewArxiv() *ArxivProvider {
	return &ArxivProvider{
		BaseURL: DefaultArxivBaseURL,
		Client:  &http.Client{},
	}
}

// arxivEntry holds one Atom feed entry.
type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	ID        string      `xml:"id"`
	Link      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

func (p *ArxivProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(limit))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", classifyErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("arxiv returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", classifyErr(err))
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]Result, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		r := Result{
			Title:   entry.Title,
			URL:     entry.ID,
			Content: entry.Summary,
		}
		for _, link := range entry.Link {
			if link.Type == "application/pdf" {
				r.URL = link.Href
				break
			}
		}
		if r.URL == "" {
			continue
		}
		if p.OCR != nil {
			if full, err := p.OCR.ScrapePDF(ctx, r.URL); err == nil && full != "" {
				r.Content = full
			}
		}
		results = append(results, r)
	}

	return results, nil
}
