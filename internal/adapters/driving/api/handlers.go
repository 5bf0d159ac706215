package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// UploadResponse reports the outcome of an upload.
type UploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Pages    int    `json:"pages,omitempty"`
	Chunks   int    `json:"chunks,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// QueryResponse is a grounded answer.
type QueryResponse struct {
	Answer       string            `json:"answer"`
	Sources      []domain.Citation `json:"sources"`
	Insufficient bool              `json:"insufficient,omitempty"`
}

// DocumentResponse describes one uploaded document.
type DocumentResponse struct {
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
	Reason     string    `json:"reason,omitempty"`
}

// ErrorResponse is returned for requests that could not be served.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleUpload validates and ingests one PDF from the multipart field "file".
func (s *Server) handleUpload(c *gin.Context) {
	// Allow some slack for multipart framing; the file size is checked below.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.tooLarge(c, "")
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "multipart field \"file\" is required"})
		return
	}

	filename := filepath.Base(header.Filename)
	if header.Size > s.config.MaxUploadBytes {
		s.tooLarge(c, filename)
		return
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		c.JSON(http.StatusUnprocessableEntity, UploadResponse{
			Status:   domain.DocumentFailed.String(),
			Filename: filename,
			Reason:   "only .pdf files are accepted",
		})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "reading upload: " + err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "reading upload: " + err.Error()})
		return
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		s.tooLarge(c, filename)
		return
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		c.JSON(http.StatusUnprocessableEntity, UploadResponse{
			Status:   domain.DocumentFailed.String(),
			Filename: filename,
			Reason:   "file content is not a PDF",
		})
		return
	}

	doc, err := s.ports.Ingestion.Ingest(c.Request.Context(), filename, data)
	if err != nil {
		c.JSON(uploadStatus(err), UploadResponse{
			Status:   domain.DocumentFailed.String(),
			Filename: filename,
			Reason:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		Status:   doc.Status.String(),
		Filename: doc.Filename,
		Pages:    doc.PageCount,
		Chunks:   doc.ChunkCount,
	})
}

func (s *Server) tooLarge(c *gin.Context, filename string) {
	c.JSON(http.StatusRequestEntityTooLarge, UploadResponse{
		Status:   domain.DocumentFailed.String(),
		Filename: filename,
		Reason:   "file exceeds the upload size limit",
	})
}

// uploadStatus maps an ingestion error onto an HTTP status.
func uploadStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnreadablePDF),
		errors.Is(err, domain.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmbeddingService),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleQuery answers a question over the corpus.
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := s.ports.Query.Ask(c.Request.Context(), req.Question)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		logger.Error("Query failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []domain.Citation{}
	}
	c.JSON(http.StatusOK, QueryResponse{
		Answer:       result.Answer,
		Sources:      sources,
		Insufficient: result.Insufficient,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.ports.Corpus.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = DocumentResponse{
			Filename:   docs[i].Filename,
			Status:     docs[i].Status.String(),
			Pages:      docs[i].PageCount,
			Chunks:     docs[i].ChunkCount,
			IngestedAt: docs[i].IngestedAt,
			Reason:     docs[i].Reason,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	filename := c.Param("filename")

	err := s.ports.Ingestion.Remove(c.Request.Context(), filename)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "filename": filename})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
