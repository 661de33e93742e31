package clients

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	// DefaultGoogleModel is the fast model used for planning and distillation.
	DefaultGoogleModel = "gemini-3-flash-preview"
	// GoogleReasoningModel is the slower model used for report synthesis.
	GoogleReasoningModel = "gemini-3-pro-preview"
)

// GoogleAI builds a Gemini-backed langchaingo model. The API key comes from
// GOOGLE_API_KEY.
func GoogleAI(ctx context.Context, model string) (*googleai.GoogleAI, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}

	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init Google AI client: %w", err)
	}
	return llm, nil
}
