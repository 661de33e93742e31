package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const researcherSystemPrompt = `You are an expert researcher. Today is %s.
- Be highly organized and extremely detailed.
- Treat the user as a domain expert; do not simplify.
- Value good arguments over authorities; consider new technologies and contrarian ideas.
- Flag speculation clearly.`

func systemPrompt() string {
	return fmt.Sprintf(researcherSystemPrompt, time.Now().Format("2006-01-02"))
}

// generateText runs a single free-form completion. Errors surface to the
// caller unmodified; isolation is the caller's decision.
func generateText(ctx context.Context, model llms.Model, system, user string) (string, error) {
	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// extract is the second stage of the generate-then-extract pattern: a
// JSON-mode call that turns free-form notes from the first stage into the
// structure described by schema. Generating richly and extracting rigidly
// produces better lists than single-stage structured generation.
func extract(ctx context.Context, model llms.Model, schema, notes string, out interface{}) error {
	system := "Extract the requested fields from the research notes. " +
		"Return the JSON object directly without any formatting or additional text. " +
		"Make sure to answer in valid json and include all required properties:\n" + schema

	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, notes),
	}, llms.WithJSONMode())
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("llm returned no choices")
	}

	content := stripFences(resp.Choices[0].Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("json parse error: %w (content: %s)", err, content)
	}
	return nil
}

// stripFences removes a markdown code fence some models wrap around JSON
// output even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
