package api

import (
	"errors"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Errors returned when required ports are missing.
var (
	ErrMissingIngestionService = errors.New("api: ingestion service is required")
	ErrMissingQueryService     = errors.New("api: query service is required")
	ErrMissingCorpusService    = errors.New("api: corpus service is required")
)

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Ingestion driving.IngestionService
	Query     driving.QueryService
	Corpus    driving.CorpusService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Ingestion == nil:
		return ErrMissingIngestionService
	case p.Query == nil:
		return ErrMissingQueryService
	case p.Corpus == nil:
		return ErrMissingCorpusService
	}
	return nil
}
