package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestBuildPrompt(t *testing.T) {
	chunks := []domain.ScoredChunk{
		scored("a.pdf", 3, "  The sky is blue.  ", 0.9),
		scored("b.pdf", 1, "Grass is green.", 0.5),
	}

	prompt := BuildPrompt("", "  What colour is the sky? ", chunks)

	assert.Contains(t, prompt, "[1] a.pdf, page 3:\nThe sky is blue.\n\n[2] b.pdf, page 1:\nGrass is green.")
	assert.Contains(t, prompt, "Question: What colour is the sky?\n")
	assert.NotContains(t, prompt, PlaceholderContext)
	assert.NotContains(t, prompt, PlaceholderQuestion)
	assert.Equal(t, prompt, BuildPrompt("", "What colour is the sky?", chunks))
}

func TestBuildPrompt_PlaceholderInsideQuestion(t *testing.T) {
	prompt := BuildPrompt("{{question}} / {{context}}", "what is {{context}}?", []domain.ScoredChunk{
		scored("a.pdf", 1, "text", 1),
	})

	assert.Equal(t, "what is {{context}}? / [1] a.pdf, page 1:\ntext", prompt)
}

func TestCitations(t *testing.T) {
	tests := []struct {
		name   string
		chunks []domain.ScoredChunk
		want   []domain.Citation
	}{
		{
			name: "empty",
			want: []domain.Citation{},
		},
		{
			name: "first appearance order",
			chunks: []domain.ScoredChunk{
				scored("b.pdf", 2, "x", 0.9),
				scored("a.pdf", 1, "y", 0.8),
				scored("b.pdf", 2, "z", 0.7),
				scored("b.pdf", 1, "w", 0.6),
			},
			want: []domain.Citation{
				{Filename: "b.pdf", Page: 2},
				{Filename: "a.pdf", Page: 1},
				{Filename: "b.pdf", Page: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Citations(tt.chunks))
		})
	}
}
