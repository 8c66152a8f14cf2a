package validation

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
)

// Mutation operations accepted by the API
const (
	OpAddNode         = "add_node"
	OpUpdateLabel     = "update_label"
	OpUpdateBarrier   = "update_barrier"
	OpToggleFailed    = "toggle_failed"
	OpUpdateRisk      = "update_risk"
	OpSetDetails      = "set_details"
	OpToggleDetails   = "toggle_details"
	OpConnect         = "connect"
	OpInsertIntoEdge  = "insert_into_edge"
	OpDeleteNode      = "delete_node"
	OpDeleteEdge      = "delete_edge"
	OpToggleCollapse  = "toggle_collapse"
	OpToggleHighlight = "toggle_highlight"
	OpClearHighlights = "clear_highlights"
	OpAutoLayout      = "auto_layout"
)

// ErrInvalidMutation wraps every mutation validation failure
var ErrInvalidMutation = errors.New("invalid mutation")

// MutationRequest is one edit sent to a diagram. Which fields are required
// depends on Op.
type MutationRequest struct {
	Op         string               `json:"op" validate:"required,oneof=add_node update_label update_barrier toggle_failed update_risk set_details toggle_details connect insert_into_edge delete_node delete_edge toggle_collapse toggle_highlight clear_highlights auto_layout"`
	NodeID     string               `json:"nodeId,omitempty" validate:"max=128"`
	EdgeID     string               `json:"edgeId,omitempty" validate:"max=300"`
	Source     string               `json:"source,omitempty" validate:"max=128"`
	Target     string               `json:"target,omitempty" validate:"max=128"`
	Kind       string               `json:"kind,omitempty" validate:"omitempty,oneof=hazard threat barrier topEvent consequence"`
	Label      string               `json:"label,omitempty" validate:"max=200"`
	Barrier    *bowtie.BarrierPatch `json:"barrier,omitempty"`
	Severity   int                  `json:"severity,omitempty" validate:"min=0,max=5"`
	Likelihood int                  `json:"likelihood,omitempty" validate:"min=0,max=5"`
	Details    []string             `json:"details,omitempty" validate:"max=50,dive,max=500"`
}

// requirements lists the fields each op needs beyond Op itself
var requirements = map[string][]string{
	OpAddNode:         {"kind"},
	OpUpdateLabel:     {"nodeId"},
	OpUpdateBarrier:   {"nodeId", "barrier"},
	OpToggleFailed:    {"nodeId"},
	OpUpdateRisk:      {"nodeId", "severity", "likelihood"},
	OpSetDetails:      {"nodeId"},
	OpToggleDetails:   {"nodeId"},
	OpConnect:         {"source", "target"},
	OpInsertIntoEdge:  {"edgeId", "kind"},
	OpDeleteNode:      {"nodeId"},
	OpDeleteEdge:      {"edgeId"},
	OpToggleCollapse:  {"nodeId"},
	OpToggleHighlight: {"nodeId"},
}

// ValidateMutation validates a mutation request
func ValidateMutation(req *MutationRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalidMutation)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMutation, formatValidationError(err))
	}

	for _, field := range requirements[req.Op] {
		if !req.has(field) {
			return fmt.Errorf("%w: %s: %s is required", ErrInvalidMutation, req.Op, field)
		}
	}

	if req.Op == OpUpdateBarrier && req.Barrier.Empty() {
		return fmt.Errorf("%w: %s: barrier patch changes nothing", ErrInvalidMutation, req.Op)
	}
	if req.Op == OpConnect && req.Source == req.Target {
		return fmt.Errorf("%w: %s: a node cannot connect to itself", ErrInvalidMutation, req.Op)
	}
	return nil
}

func (r *MutationRequest) has(field string) bool {
	switch field {
	case "kind":
		return r.Kind != ""
	case "nodeId":
		return r.NodeID != ""
	case "edgeId":
		return r.EdgeID != ""
	case "source":
		return r.Source != ""
	case "target":
		return r.Target != ""
	case "barrier":
		return r.Barrier != nil
	case "severity":
		return r.Severity > 0
	case "likelihood":
		return r.Likelihood > 0
	}
	return false
}
