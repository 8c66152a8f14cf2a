package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/auth"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
)

// apiKeys answers 501 when no key store is configured
func (s *Server) apiKeys(w http.ResponseWriter) (*auth.APIKeyStore, bool) {
	if s.keys == nil {
		s.respondError(w, http.StatusNotImplemented, "API keys are not enabled")
		return nil, false
	}
	return s.keys, true
}

// GET /apikeys
func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, ok := s.apiKeys(w)
	if !ok {
		return
	}
	list := keys.List()
	s.respondJSON(w, http.StatusOK, APIKeyListResponse{Keys: list, Count: len(list)})
}

// POST /apikeys
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	keys, ok := s.apiKeys(w)
	if !ok {
		return
	}

	var req CreateAPIKeyRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).RespondError() {
		return
	}

	var expiresIn time.Duration
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid expiresIn %q", req.ExpiresIn))
			return
		}
		expiresIn = d
	}

	k, key, err := keys.CreateKey(req.Name, req.Role, expiresIn)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	issuer := "anonymous"
	if claims, ok := auth.ClaimsFrom(r.Context()); ok {
		issuer = claims.Subject
	}
	s.logger.Info("api key created",
		logging.String("key_id", k.ID),
		logging.String("role", k.Role),
		logging.String("created_by", issuer))

	s.respondJSON(w, http.StatusCreated, CreateAPIKeyResponse{APIKey: k, Key: key})
}

// DELETE /apikeys/{id}
func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	keys, ok := s.apiKeys(w)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := keys.Revoke(id); err != nil {
		if errors.Is(err, auth.ErrAPIKeyNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("API key %q not found", id))
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("api key revoked", logging.String("key_id", id))
	w.WriteHeader(http.StatusNoContent)
}
