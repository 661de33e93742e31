package budget

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// charCounter is a deterministic TokenCounter for tests: one token per
// perToken bytes, rounded up.
type charCounter struct {
	perToken int
}

func (c charCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + c.perToken - 1) / c.perToken
}

func sampleText(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("Research findings accumulate across iterations. Each branch explores a narrower question than its parent. The final report merges every learning into one narrative.")
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func TestTrimReturnsUnchangedWhenWithinBudget(t *testing.T) {
	b := New(charCounter{perToken: 3})
	text := "short text that easily fits"

	if got := b.Trim(text, 1000); got != text {
		t.Errorf("Trim() = %q, want unchanged input", got)
	}
}

func TestTrimEmptyInput(t *testing.T) {
	b := New(charCounter{perToken: 3})
	if got := b.Trim("", 10); got != "" {
		t.Errorf("Trim(\"\") = %q, want empty", got)
	}
}

func TestTrimProperties(t *testing.T) {
	tests := []struct {
		name      string
		perToken  int
		text      string
		maxTokens int
	}{
		{"Aligned ratio", 3, sampleText(40), 500},
		{"Token-heavy text", 1, sampleText(10), 50},
		{"Tiny budget", 3, sampleText(40), 5},
		{"Budget of one", 3, sampleText(5), 1},
		{"Single paragraph", 3, sampleText(1), 20},
		{"No separators", 3, strings.Repeat("x", 2000), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(charCounter{perToken: tt.perToken})
			got := b.Trim(tt.text, tt.maxTokens)

			if len(got) > len(tt.text) {
				t.Errorf("Trim() grew input: len %d > %d", len(got), len(tt.text))
			}
			if b.Count(got) > tt.maxTokens && len(got) > MinChunkLen {
				t.Errorf("Trim() = %d tokens, %d bytes; want <= %d tokens or <= %d bytes",
					b.Count(got), len(got), tt.maxTokens, MinChunkLen)
			}

			// Idempotent once trimmed.
			again := b.Trim(got, tt.maxTokens)
			if again != got {
				t.Errorf("Trim() not idempotent: %q != %q", again, got)
			}
		})
	}
}

func TestTruncateBytesPreservesRunes(t *testing.T) {
	s := strings.Repeat("日本語テキスト", 20)

	for _, limit := range []int{0, 1, 2, 3, 10, 50, len(s), len(s) + 5} {
		got := truncateBytes(s, limit)
		if len(got) > limit && limit >= 0 {
			t.Errorf("truncateBytes(len=%d) returned %d bytes", limit, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateBytes(len=%d) split a rune", limit)
		}
	}
}
