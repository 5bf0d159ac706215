package chunker

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func words(n int) string {
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = vocab[i%len(vocab)]
	}
	return strings.Join(parts, " ")
}

func collect(c *Chunker, page domain.Page) []domain.Chunk {
	return slices.Collect(c.Chunks("doc.pdf", page))
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := New()
		if c.size != DefaultChunkSize {
			t.Errorf("expected size %d, got %d", DefaultChunkSize, c.size)
		}
		if c.overlap != DefaultOverlap {
			t.Errorf("expected overlap %v, got %v", DefaultOverlap, c.overlap)
		}
		if c.OverlapBytes() != 150 {
			t.Errorf("expected 150 overlap bytes, got %d", c.OverlapBytes())
		}
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		c := New(WithChunkSize(0), WithOverlap(0.9), WithOverlap(-0.1), WithLookback(-1))
		if c.size != DefaultChunkSize {
			t.Errorf("expected default size, got %d", c.size)
		}
		if c.overlap != DefaultOverlap {
			t.Errorf("expected default overlap, got %v", c.overlap)
		}
		if c.lookback != DefaultLookback {
			t.Errorf("expected default lookback, got %d", c.lookback)
		}
	})

	t.Run("max size caps chunk size", func(t *testing.T) {
		c := New(WithChunkSize(2000), WithMaxChunkSize(512))
		if c.Size() != 512 {
			t.Errorf("expected size 512, got %d", c.Size())
		}
	})

	t.Run("lookback bounded by half the size", func(t *testing.T) {
		c := New(WithChunkSize(40), WithLookback(100))
		if c.lookback != 20 {
			t.Errorf("expected lookback 20, got %d", c.lookback)
		}
	})
}

func TestChunks_BlankPage(t *testing.T) {
	c := New()
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if got := collect(c, domain.Page{Number: 1, Text: text}); len(got) != 0 {
			t.Errorf("expected no chunks for %q, got %d", text, len(got))
		}
	}
}

func TestChunks_ShortPage(t *testing.T) {
	c := New()
	page := domain.Page{Number: 2, Text: "The sky is blue."}

	got := collect(c, page)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	chunk := got[0]
	if chunk.Text != page.Text || chunk.Start != 0 || chunk.End != len(page.Text) {
		t.Errorf("unexpected chunk %+v", chunk)
	}
	if chunk.Page != 2 || chunk.Filename != "doc.pdf" || chunk.Sequence != 0 {
		t.Errorf("unexpected provenance %+v", chunk)
	}
	if chunk.ID != "doc.pdf#p2#c0" {
		t.Errorf("unexpected id %q", chunk.ID)
	}
}

func TestChunks_CoverageAndOverlap(t *testing.T) {
	c := New(WithChunkSize(200), WithOverlap(0.15))
	page := domain.Page{Number: 1, Text: words(400)}

	got := collect(c, page)
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	if got[0].Start != 0 {
		t.Errorf("first chunk should start at 0, got %d", got[0].Start)
	}
	if last := got[len(got)-1]; last.End != len(page.Text) {
		t.Errorf("last chunk should end at %d, got %d", len(page.Text), last.End)
	}

	for i, chunk := range got {
		if chunk.Text != page.Text[chunk.Start:chunk.End] {
			t.Errorf("chunk %d text does not match its offsets", i)
		}
		if chunk.End-chunk.Start > c.Size() {
			t.Errorf("chunk %d longer than size: %d", i, chunk.End-chunk.Start)
		}
		if chunk.Sequence != i {
			t.Errorf("chunk %d has sequence %d", i, chunk.Sequence)
		}
		if i == 0 {
			continue
		}
		prev := got[i-1]
		if chunk.Start > prev.End {
			t.Errorf("gap between chunk %d and %d", i-1, i)
		}
		if chunk.Start <= prev.Start {
			t.Errorf("chunk %d does not advance", i)
		}
		if shared := prev.End - chunk.Start; shared > c.OverlapBytes() {
			t.Errorf("chunk %d overlaps by %d bytes, max %d", i, shared, c.OverlapBytes())
		}
	}
}

func TestChunks_WordBoundaries(t *testing.T) {
	c := New(WithChunkSize(100))
	page := domain.Page{Number: 1, Text: words(300)}

	got := collect(c, page)
	for i, chunk := range got[:len(got)-1] {
		if midWord(page.Text, chunk.End) {
			t.Errorf("chunk %d ends mid-word: %q", i, chunk.Text)
		}
	}
}

func TestChunks_NoWhitespace(t *testing.T) {
	c := New(WithChunkSize(50), WithOverlap(0.1))
	page := domain.Page{Number: 1, Text: strings.Repeat("x", 500)}

	got := collect(c, page)
	var rebuilt strings.Builder
	pos := 0
	for _, chunk := range got {
		rebuilt.WriteString(page.Text[pos:chunk.End])
		pos = chunk.End
	}
	if rebuilt.String() != page.Text {
		t.Error("chunks do not cover the page")
	}
}

func TestChunks_MultiByteRunes(t *testing.T) {
	c := New(WithChunkSize(33), WithLookback(0))
	page := domain.Page{Number: 1, Text: strings.Repeat("héllo wörld ünïcode ", 30)}

	for _, chunk := range collect(c, page) {
		if !utf8.ValidString(chunk.Text) {
			t.Fatalf("chunk %d splits a rune: %q", chunk.Sequence, chunk.Text)
		}
	}
}

func TestChunks_Deterministic(t *testing.T) {
	page := domain.Page{Number: 3, Text: words(500)}

	first := collect(New(WithChunkSize(120)), page)
	second := collect(New(WithChunkSize(120)), page)

	if !slices.Equal(first, second) {
		t.Error("chunking the same page twice produced different chunks")
	}
}

func TestChunks_Restartable(t *testing.T) {
	c := New(WithChunkSize(100))
	seq := c.Chunks("doc.pdf", domain.Page{Number: 1, Text: words(200)})

	var firstTwo []domain.Chunk
	for chunk := range seq {
		firstTwo = append(firstTwo, chunk)
		if len(firstTwo) == 2 {
			break
		}
	}
	all := slices.Collect(seq)

	if len(all) <= 2 {
		t.Fatalf("expected more than two chunks, got %d", len(all))
	}
	if !slices.Equal(firstTwo, all[:2]) {
		t.Error("restarted sequence differs from the first pass")
	}
}

func TestChunkPages_NeverSpansPages(t *testing.T) {
	c := New(WithChunkSize(80))
	pages := []domain.Page{
		{Number: 1, Text: "The sky is blue. " + words(30)},
		{Number: 2, Text: ""},
		{Number: 3, Text: "Grass is green. " + words(30)},
	}

	chunks := c.ChunkPages("nature.pdf", pages)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for _, chunk := range chunks {
		if chunk.Page == 2 {
			t.Errorf("blank page produced a chunk")
		}
		text := pages[chunk.Page-1].Text
		if chunk.End > len(text) || text[chunk.Start:chunk.End] != chunk.Text {
			t.Errorf("chunk %s is not a span of page %d", chunk.ID, chunk.Page)
		}
	}
	if chunks[0].Page != 1 || chunks[len(chunks)-1].Page != 3 {
		t.Error("chunks are not in page order")
	}
}
