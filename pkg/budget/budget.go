package budget

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// CharsPerToken is the empirical average character/token ratio for
	// English prose under cl100k_base. It is only an estimate, which is why
	// Trim iterates to a fixed point instead of cutting once.
	CharsPerToken = 3

	// MinChunkLen is the smallest prefix worth splitting for. Below this we
	// hard-truncate and stop, so Trim always terminates even when the
	// tokenizer and the character estimate disagree badly.
	MinChunkLen = 140

	// DefaultEncoding matches the tokenization of the models we prompt.
	DefaultEncoding = "cl100k_base"
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Budgeter trims text to a token budget, cutting at paragraph, sentence or
// word boundaries rather than at an arbitrary character offset.
type Budgeter struct {
	counter TokenCounter
}

func New(counter TokenCounter) *Budgeter {
	return &Budgeter{counter: counter}
}

// Count returns the token count of text.
func (b *Budgeter) Count(text string) int {
	return b.counter.Count(text)
}

// Trim returns the longest prefix of text that fits within maxTokens, cut at
// a semantic boundary. Token cost is not linear in character count, so a
// single truncation pass is not enough: each round estimates a character
// target from the token overflow, splits there, and re-measures until the
// candidate fits or shrinks to the MinChunkLen floor.
func (b *Budgeter) Trim(text string, maxTokens int) string {
	if text == "" {
		return ""
	}

	tokens := b.counter.Count(text)
	if tokens <= maxTokens {
		return text
	}

	overflow := tokens - maxTokens
	target := len(text) - overflow*CharsPerToken
	if target < MinChunkLen {
		// Floor case: nothing meaningful left to split.
		return truncateBytes(text, MinChunkLen)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(target),
		textsplitter.WithChunkOverlap(0),
	)

	candidate := ""
	if chunks, err := splitter.SplitText(text); err == nil && len(chunks) > 0 {
		candidate = chunks[0]
	}

	if candidate == "" || len(candidate) >= len(text) {
		// Splitter made no progress (tokenizer/char-ratio mismatch).
		// Hard-cut and restart on the substring.
		return b.Trim(truncateBytes(text, target), maxTokens)
	}

	return b.Trim(candidate, maxTokens)
}

// truncateBytes returns the longest prefix of s that is at most maxBytes
// bytes without splitting a UTF-8 rune.
func truncateBytes(s string, maxBytes int) string {
	if maxBytes >= len(s) {
		return s
	}
	if maxBytes <= 0 {
		return ""
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}
