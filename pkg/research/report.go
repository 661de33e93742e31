package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/BStoller/deep-research/pkg/budget"
)

// ComposeReport synthesizes all accumulated learnings into a long-form
// Markdown report and appends the list of visited sources. The learnings
// block is trimmed to ReportContextTokens before it enters the prompt; any
// model error aborts the report entirely.
func ComposeReport(ctx context.Context, model llms.Model, b *budget.Budgeter, query, prompt string, learnings, visitedURLs []string) (string, error) {
	var block strings.Builder
	for _, l := range learnings {
		block.WriteString("<learning>\n")
		block.WriteString(l)
		block.WriteString("\n</learning>\n")
	}
	trimmed := b.Trim(block.String(), ReportContextTokens)

	input := fmt.Sprintf(`Given the following prompt from the user, write a final report on the topic using `+
		`the learnings from research. Aim for 3 or more pages of Markdown and include ALL the learnings.

<prompt>%s</prompt>

Here is the research goal that was explored:

<goal>%s</goal>

Here are all the learnings from the research:

<learnings>
%s</learnings>`, prompt, query, trimmed)

	report, err := generateText(ctx, model, systemPrompt(), input)
	if err != nil {
		return "", fmt.Errorf("report synthesis failed: %w", err)
	}

	var sources strings.Builder
	sources.WriteString("\n\n## Sources\n\n")
	for _, u := range visitedURLs {
		sources.WriteString("- ")
		sources.WriteString(u)
		sources.WriteString("\n")
	}

	return report + sources.String(), nil
}
