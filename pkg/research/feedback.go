package research

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

func questionsSchema(n int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "questions": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of up to %d clarifying questions"
    }
  },
  "required": ["questions"]
}`, n)
}

// FollowUpQuestions asks the model for clarifying questions about an initial
// research query, so the user can sharpen it before the run starts.
func FollowUpQuestions(ctx context.Context, model llms.Model, query string, max int) ([]string, error) {
	input := fmt.Sprintf(`Given the following query from the user, ask up to %d follow-up questions `+
		`to clarify the research direction. Skip questions whose answer is already clear from the query.

<query>%s</query>`, max, query)

	notes, err := generateText(ctx, model, systemPrompt(), input)
	if err != nil {
		return nil, fmt.Errorf("feedback generation failed: %w", err)
	}

	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := extract(ctx, model, questionsSchema(max), notes, &parsed); err != nil {
		return nil, fmt.Errorf("feedback extraction failed: %w", err)
	}

	// The schema already bounds the list; truncate anyway.
	if len(parsed.Questions) > max {
		parsed.Questions = parsed.Questions[:max]
	}
	return parsed.Questions, nil
}
