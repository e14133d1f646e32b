package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

const (
	// DefaultChunkTokens keeps chunks well below the provider's 8000 token
	// ceiling so chunk metadata and the title fit alongside the text.
	DefaultChunkTokens = 6000
	charsPerToken      = 4
)

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

// EstimateTokens approximates the token count as ceil(chars/4). It is not a
// tokenizer; the chunk budgets are tuned against this approximation.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

type TextChunker struct {
	maxTokens int
}

func NewTextChunker(maxTokens int) *TextChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	return &TextChunker{maxTokens: maxTokens}
}

func (c *TextChunker) MaxTokens() int {
	return c.maxTokens
}

func (c *TextChunker) Chunk(text string) ([]string, error) {
	return ChunkWithBudget(text, c.maxTokens)
}

// ChunkWithBudget packs whole sentences into chunks of at most maxTokens
// estimated tokens. The budget is the sum of EstimateTokens over a chunk's
// sentences; the single space joining them is not counted, so
// EstimateTokens(chunk) may exceed maxTokens by the joins. A sentence that
// alone exceeds the budget becomes its own chunk and is not split further.
func ChunkWithBudget(text string, maxTokens int) ([]string, error) {
	if maxTokens <= 0 {
		return nil, appErr.ErrInvalidInput
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, appErr.ErrInvalidInput
	}
	var (
		chunks  []string
		current []string
		tokens  int
	)
	for _, sentence := range sentences {
		t := EstimateTokens(sentence)
		if len(current) > 0 && tokens+t > maxTokens {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			tokens = 0
		}
		current = append(current, sentence)
		tokens += t
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks, nil
}

// SplitSentences cuts text after terminal punctuation followed by whitespace.
// Trailing text without punctuation is kept as the last sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
