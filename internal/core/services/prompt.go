package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Template placeholders.
const (
	PlaceholderContext  = "{{context}}"
	PlaceholderQuestion = "{{question}}"
)

// DefaultAnswerPrompt is used when no custom answer prompt is configured.
const DefaultAnswerPrompt = `You answer questions using only the document excerpts below.
Each excerpt is labelled with its number, file name and page.

Rules:
- Base the answer solely on the excerpts. Do not use outside knowledge.
- If the excerpts do not contain the answer, say that the documents do not cover it.
- Be concise.

Excerpts:
{{context}}

Question: {{question}}

Answer:`

// BuildPrompt renders the answer prompt for a question and its ranked chunks.
// It has no side effects and the same input always yields the same prompt.
func BuildPrompt(template, question string, chunks []domain.ScoredChunk) string {
	if template == "" {
		template = DefaultAnswerPrompt
	}
	r := strings.NewReplacer(
		PlaceholderContext, FormatContext(chunks),
		PlaceholderQuestion, strings.TrimSpace(question),
	)
	return r.Replace(template)
}

// FormatContext labels each chunk with its rank and provenance.
func FormatContext(chunks []domain.ScoredChunk) string {
	var b strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s, page %d:\n%s", i+1, sc.Chunk.Filename, sc.Chunk.Page, strings.TrimSpace(sc.Chunk.Text))
	}
	return b.String()
}

// Citations returns the distinct pages of the chunks in order of first appearance.
// It always returns a non-nil slice.
func Citations(chunks []domain.ScoredChunk) []domain.Citation {
	seen := make(map[domain.Citation]struct{}, len(chunks))
	out := make([]domain.Citation, 0, len(chunks))
	for _, sc := range chunks {
		c := sc.Chunk.Citation()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
