package clients

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOpenAIModel is the fast model used for planning and distillation.
	DefaultOpenAIModel = "gpt-4o-mini"
	// OpenAIReasoningModel is the model used for report synthesis.
	OpenAIReasoningModel = "o3-mini"
)

// OpenAI builds an OpenAI-backed langchaingo model. The API key comes from
// OPENAI_API_KEY; OPENAI_BASE_URL switches to a compatible endpoint.
func OpenAI(model string) (*openai.LLM, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init OpenAI client: %w", err)
	}
	return llm, nil
}
