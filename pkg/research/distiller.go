package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
	"github.com/BStoller/deep-research/pkg/search"
)

// Distiller converts a batch of search results into learnings and follow-up
// questions.
type Distiller struct {
	Model    llms.Model
	Budgeter *budget.Budgeter
}

// Distilled is the output of one distillation pass.
type Distilled struct {
	Learnings []string `json:"learnings"`
	FollowUps []string `json:"followUpQuestions"`
}

func distilledSchema(numLearnings, numFollowUps int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "learnings": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of up to %d detailed learnings"
    },
    "followUpQuestions": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of up to %d follow-up questions"
    }
  },
  "required": ["learnings", "followUpQuestions"]
}`, numLearnings, numFollowUps)
}

// Distill extracts up to numLearnings learnings and numFollowUps follow-up
// questions from the documents retrieved for query. Every document is
// trimmed to PerDocumentTokens first, so prompt size is bounded by the
// result count regardless of raw page size.
func (d *Distiller) Distill(ctx context.Context, query string, docs []search.Result, numLearnings, numFollowUps int) (Distilled, error) {
	var contents strings.Builder
	for _, doc := range docs {
		text := d.Budgeter.Trim(doc.Content, PerDocumentTokens)
		if text == "" {
			continue
		}
		contents.WriteString("<content>\n")
		contents.WriteString(text)
		contents.WriteString("\n</content>\n")
	}

	input := fmt.Sprintf(`Given the following contents from a search for the query <query>%s</query>, `+
		`write up to %d unique, information-dense learnings (include entities, metrics and dates where present) `+
		`and up to %d follow-up questions for further research.

<contents>
%s</contents>`, query, numLearnings, numFollowUps, contents.String())

	notes, err := generateText(ctx, d.Model, systemPrompt(), input)
	if err != nil {
		return Distilled{}, fmt.Errorf("distillation failed: %w", err)
	}

	var parsed Distilled
	if err := extract(ctx, d.Model, distilledSchema(numLearnings, numFollowUps), notes, &parsed); err != nil {
		return Distilled{}, fmt.Errorf("distillation extraction failed: %w", err)
	}

	if len(parsed.Learnings) > numLearnings {
		parsed.Learnings = parsed.Learnings[:numLearnings]
	}
	if len(parsed.FollowUps) > numFollowUps {
		parsed.FollowUps = parsed.FollowUps[:numFollowUps]
	}
	return parsed, nil
}
