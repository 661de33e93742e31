package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Planner turns a research goal and prior learnings into search queries.
type Planner struct {
	Model llms.Model
}

func searchQueriesSchema(n int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of up to %d unique search queries"
    }
  },
  "required": ["queries"]
}`, n)
}

// Plan generates up to n unique search queries for topic. Prior learnings
// steer later queries away from ground already covered; the caller is
// responsible for keeping them within context bounds.
func (p *Planner) Plan(ctx context.Context, topic string, priorLearnings []string, n int) ([]string, error) {
	var input strings.Builder
	fmt.Fprintf(&input, "Given the following research goal, propose up to %d unique search queries. ", n)
	input.WriteString("Each query should target a distinct aspect of the goal.\n\n<goal>")
	input.WriteString(topic)
	input.WriteString("</goal>")
	if len(priorLearnings) > 0 {
		input.WriteString("\n\nUse these learnings from earlier research to make the queries more specific:\n")
		input.WriteString(strings.Join(priorLearnings, "\n"))
	}

	notes, err := generateText(ctx, p.Model, systemPrompt(), input.String())
	if err != nil {
		return nil, fmt.Errorf("query generation failed: %w", err)
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := extract(ctx, p.Model, searchQueriesSchema(n), notes, &parsed); err != nil {
		return nil, fmt.Errorf("query extraction failed: %w", err)
	}
	if len(parsed.Queries) == 0 {
		return nil, fmt.Errorf("planner produced no queries")
	}

	return parsed.Queries, nil
}
