package domain

// InsufficientContextAnswer is returned when no indexed content is relevant
// enough to answer a question. No generative call is made in that case.
const InsufficientContextAnswer = "I could not find information relevant to your question in the uploaded documents."

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the similarity to the query, higher is better.
	Score float64
}

// Citation points at the page an answer draws on.
type Citation struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
}

// QueryResult is a grounded answer.
type QueryResult struct {
	// Answer is the synthesised answer text.
	Answer string

	// Sources lists the pages supplied to the model, in ranking order.
	Sources []Citation

	// Insufficient is true when no relevant context was found.
	Insufficient bool
}
