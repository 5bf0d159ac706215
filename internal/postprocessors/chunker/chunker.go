// Package chunker splits page text into overlapping, word-aligned chunks.
package chunker

import (
	"iter"
	"math"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default fraction of a chunk repeated in the next one.
const DefaultOverlap = 0.15

// DefaultLookback is how far a boundary may move back to land on whitespace.
const DefaultLookback = 40

// MaxOverlap is the largest accepted overlap fraction.
const MaxOverlap = 0.5

// minChunkSize keeps room for at least one multi-byte rune per chunk.
const minChunkSize = 16

// Chunker splits page text into fixed-size chunks that overlap and
// prefer to end on whitespace.
type Chunker struct {
	size     int
	overlap  float64
	lookback int
	maxSize  int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size >= minChunkSize {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap as a fraction of the chunk size.
// Values outside [0, MaxOverlap] are ignored.
func WithOverlap(fraction float64) Option {
	return func(c *Chunker) {
		if fraction >= 0 && fraction <= MaxOverlap {
			c.overlap = fraction
		}
	}
}

// WithLookback sets how many bytes a boundary may move back to find whitespace.
func WithLookback(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.lookback = n
		}
	}
}

// WithMaxChunkSize caps the chunk size, typically at the embedding model's input limit.
func WithMaxChunkSize(n int) Option {
	return func(c *Chunker) {
		if n >= minChunkSize {
			c.maxSize = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:     DefaultChunkSize,
		overlap:  DefaultOverlap,
		lookback: DefaultLookback,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxSize > 0 && c.size > c.maxSize {
		c.size = c.maxSize
	}
	// A boundary never moves back past the middle of a chunk.
	if c.lookback > c.size/2 {
		c.lookback = c.size / 2
	}

	return c
}

// Size returns the effective chunk size in bytes.
func (c *Chunker) Size() int {
	return c.size
}

// OverlapBytes returns the maximum number of bytes shared by consecutive chunks.
func (c *Chunker) OverlapBytes() int {
	return int(math.Ceil(float64(c.size) * c.overlap))
}

// Chunks returns the chunks of one page as a restartable sequence.
func (c *Chunker) Chunks(filename string, page domain.Page) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		if page.IsBlank() {
			return
		}

		text := page.Text
		n := len(text)
		overlap := c.OverlapBytes()
		seq := 0
		start := 0

		for start < n {
			end := n
			if start+c.size < n {
				end = c.boundary(text, start, start+c.size)
			}

			if !isBlank(text[start:end]) {
				chunk := domain.Chunk{
					ID:       domain.ChunkID(filename, page.Number, seq),
					Filename: filename,
					Page:     page.Number,
					Sequence: seq,
					Text:     text[start:end],
					Start:    start,
					End:      end,
				}
				if !yield(chunk) {
					return
				}
				seq++
			}

			if end == n {
				return
			}
			start = c.nextStart(text, start, end, overlap)
		}
	}
}

// ChunkPages collects the chunks of every page of a document in page order.
func (c *Chunker) ChunkPages(filename string, pages []domain.Page) []domain.Chunk {
	var chunks []domain.Chunk
	for _, page := range pages {
		for chunk := range c.Chunks(filename, page) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// boundary picks the end of a chunk starting at start with target end.
// The result lies in (start, end] on a rune boundary and, when possible,
// directly after whitespace.
func (c *Chunker) boundary(text string, start, end int) int {
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	if !midWord(text, end) {
		return end
	}

	floor := max(end-c.lookback, start+1)
	for i := end - 1; i >= floor; i-- {
		if isSpaceByte(text[i-1]) {
			return i
		}
	}
	return end
}

// nextStart picks the start of the chunk following [start, end).
// It never leaves a gap and always makes progress.
func (c *Chunker) nextStart(text string, start, end, overlap int) int {
	next := end - overlap
	if next <= start {
		return end
	}
	for next < end && !utf8.RuneStart(text[next]) {
		next++
	}
	if !midWord(text, next) {
		return next
	}

	// Skip forward to the next word so the overlap does not open mid-word.
	limit := min(next+c.lookback, end)
	for i := next + 1; i <= limit; i++ {
		if isSpaceByte(text[i-1]) {
			return i
		}
	}
	return next
}

// midWord reports whether offset i splits two non-space characters.
func midWord(text string, i int) bool {
	if i <= 0 || i >= len(text) {
		return false
	}
	return !isSpaceByte(text[i-1]) && !isSpaceByte(text[i])
}

// isSpaceByte reports ASCII whitespace; multi-byte runes never count as space
// so a boundary chosen by it is always a rune boundary.
func isSpaceByte(b byte) bool {
	return b < utf8.RuneSelf && unicode.IsSpace(rune(b))
}

func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
