package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// diagram resolves the {id} path value, answering 404 when it is unknown
func (s *Server) diagram(w http.ResponseWriter, r *http.Request) (*editor.Editor, bool) {
	id := r.PathValue("id")
	ed, ok := s.store.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("diagram %q not found", id))
	}
	return ed, ok
}

// readBody reads the whole request body. The body size middleware bounds it.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			s.respondError(w, http.StatusBadRequest, "failed to read request body")
		}
		return nil, false
	}
	return data, true
}

// requestDecoder decodes and validates request bodies with a fluent
// interface; the first failure wins
type requestDecoder struct {
	w          http.ResponseWriter
	r          *http.Request
	server     *Server
	err        error
	statusCode int
}

// NewRequestDecoder creates a new request decoder for the given request
func (s *Server) NewRequestDecoder(w http.ResponseWriter, r *http.Request) *requestDecoder {
	return &requestDecoder{w: w, r: r, server: s}
}

// DecodeJSON decodes the body into v, rejecting unknown fields
func (rd *requestDecoder) DecodeJSON(v any) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	dec := json.NewDecoder(rd.r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		rd.err = fmt.Errorf("invalid request body: %w", err)
		rd.statusCode = http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rd.statusCode = http.StatusRequestEntityTooLarge
		}
	}
	return rd
}

// ValidateMutation checks a decoded mutation envelope
func (rd *requestDecoder) ValidateMutation(req *validation.MutationRequest) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := validation.ValidateMutation(req); err != nil {
		rd.err = err
		rd.statusCode = http.StatusBadRequest
	}
	return rd
}

// RespondError sends the error response and reports whether there was one
func (rd *requestDecoder) RespondError() bool {
	if rd.err == nil {
		return false
	}
	rd.server.respondError(rd.w, rd.statusCode, rd.err.Error())
	return true
}
