package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOCRBaseURL is the Mistral OCR endpoint.
const DefaultOCRBaseURL = "https://api.mistral.ai/v1/ocr"

// OCRClient extracts the contents of a PDF as markdown using the Mistral
// OCR API.
type OCRClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewOCRClient(apiKey string) *OCRClient {
	return &OCRClient{
		BaseURL: DefaultOCRBaseURL,
		APIKey:  apiKey,
		Client:  &http.Client{},
	}
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// ScrapePDF fetches the text of the PDF at url as markdown.
func (c *OCRClient) ScrapePDF(ctx context.Context, pdfURL string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("OCR API key is not set")
	}

	pdfURL = strings.Replace(pdfURL, "http://", "https://", 1)

	reqBody := map[string]interface{}{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": pdfURL,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", classifyErr(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR request failed with status %s: %s", resp.Status, string(body))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var sb strings.Builder
	for _, page := range parsed.Pages {
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
