package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the uploaded PDFs"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string         `json:"answer"`
	Sources      []SourceOutput `json:"sources"`
	Insufficient bool           `json:"insufficient,omitempty"`
}

// SourceOutput is a page the answer draws on.
type SourceOutput struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput describes one uploaded document.
type DocumentOutput struct {
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
	Reason     string    `json:"reason,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the uploaded PDF documents, with page citations",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the uploaded PDF documents and their ingestion status",
	}, s.handleListDocuments)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	result, err := s.ports.Query.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:       result.Answer,
		Sources:      make([]SourceOutput, len(result.Sources)),
		Insufficient: result.Insufficient,
	}
	for i, c := range result.Sources {
		output.Sources[i] = SourceOutput{Filename: c.Filename, Page: c.Page}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.listDocuments(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	return nil, ListDocumentsOutput{Documents: docs, Count: len(docs)}, nil
}

// listDocuments returns the corpus in wire form, empty without a corpus service.
func (s *Server) listDocuments(ctx context.Context) ([]DocumentOutput, error) {
	if s.ports.Corpus == nil {
		return []DocumentOutput{}, nil
	}

	docs, err := s.ports.Corpus.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]DocumentOutput, len(docs))
	for i := range docs {
		out[i] = DocumentOutput{
			Filename:   docs[i].Filename,
			Status:     docs[i].Status.String(),
			Pages:      docs[i].PageCount,
			Chunks:     docs[i].ChunkCount,
			IngestedAt: docs[i].IngestedAt,
			Reason:     docs[i].Reason,
		}
	}
	return out, nil
}
