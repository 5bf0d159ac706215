// Package api provides the HTTP adapter for docqa.
//
// It exposes document upload, question answering and corpus management
// over a small JSON API built on gin:
//
//	POST   /upload               multipart field "file", PDF only
//	POST   /query                {"question": "..."}
//	GET    /documents            uploaded documents and their status
//	DELETE /documents/:filename  remove a document and its index entries
//	GET    /health               liveness probe
package api
