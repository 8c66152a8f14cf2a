package api

import (
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/auth"
	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Diagrams  int       `json:"diagrams"`
	Auth      bool      `json:"auth"`
	Archive   string    `json:"archive,omitempty"`
}

// ErrorResponse is the body of every error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// DiagramResponse carries a diagram's current view
type DiagramResponse struct {
	ID string `json:"id"`
	*pipeline.View
	Warnings []bowtie.Issue `json:"warnings,omitempty"`
}

// DiagramSummary is one entry of GET /diagrams
type DiagramSummary struct {
	ID               string `json:"id"`
	Nodes            int    `json:"nodes"`
	Edges            int    `json:"edges"`
	TopEventID       string `json:"topEventId,omitempty"`
	TopEventBreached bool   `json:"topEventBreached"`
	Issues           int    `json:"issues"`
}

// ListResponse is returned by GET /diagrams
type ListResponse struct {
	Diagrams []DiagramSummary `json:"diagrams"`
	Count    int              `json:"count"`
}

// MutationResponse reports the result of one mutation. Node or Edge is set
// when the mutation created one.
type MutationResponse struct {
	ID   string       `json:"id"`
	Op   string       `json:"op"`
	Node *bowtie.Node `json:"node,omitempty"`
	Edge *bowtie.Edge `json:"edge,omitempty"`
	*pipeline.View
}

// CreateAPIKeyRequest is the body of POST /apikeys. ExpiresIn is a Go
// duration string; empty never expires.
type CreateAPIKeyRequest struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	ExpiresIn string `json:"expiresIn,omitempty"`
}

// CreateAPIKeyResponse carries the only copy of the new key
type CreateAPIKeyResponse struct {
	auth.APIKey
	Key string `json:"key"`
}

// APIKeyListResponse is returned by GET /apikeys
type APIKeyListResponse struct {
	Keys  []auth.APIKey `json:"keys"`
	Count int           `json:"count"`
}
