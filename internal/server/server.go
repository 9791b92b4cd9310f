// Package server exposes the document layer over HTTP and the raw record
// store over gRPC.
package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/odm"
)

// maxBodyBytes bounds request bodies accepted by the HTTP API.
const maxBodyBytes = 4 << 20

// Server serves documents of a session's registry over HTTP.
type Server struct {
	session *odm.Session
	stream  *Stream
	logger  *zap.Logger
}

// New returns a Server. stream should be the publisher the session was
// built with so lifecycle events reach /v1/events/stream; nil disables
// the endpoint.
func New(session *odm.Session, stream *Stream, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{session: session, stream: stream, logger: logger}
}

// NewHTTPHandler returns an http.Handler with all routes registered. When
// authToken is non-empty every request except GET /v1/health must carry
// "Authorization: Bearer <token>".
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/schemas", s.handleListSchemas)
	mux.HandleFunc("GET /v1/schemas/{schema}", s.handleGetSchema)
	mux.HandleFunc("POST /v1/documents/{schema}", s.handleSaveDocument)
	mux.HandleFunc("GET /v1/documents/{schema}", s.handleListDocuments)
	mux.HandleFunc("GET /v1/documents/{schema}/{key}", s.handleGetDocument)
	mux.HandleFunc("DELETE /v1/documents/{schema}/{key}", s.handleDeleteDocument)
	mux.HandleFunc("GET /v1/documents/{schema}/{key}/{field}", s.handleGetField)
	mux.HandleFunc("POST /v1/validate/{schema}", s.handleValidate)
	mux.HandleFunc("DELETE /v1/collections/{schema}", s.handleDropCollection)
	if s.stream != nil {
		mux.Handle("GET /v1/events/stream", s.stream)
	}
	return RequestLogger(s.logger, AuthMiddleware(authToken, mux))
}
