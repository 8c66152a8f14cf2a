package api

import (
	"errors"
	"net/http"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/validation"
)

// POST /diagrams/{id}/mutations applies one typed edit
func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.diagram(w, r)
	if !ok {
		return
	}

	var req validation.MutationRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).ValidateMutation(&req).RespondError() {
		return
	}

	resp, err := applyMutation(ed, &req)
	if err != nil {
		s.respondError(w, mutationStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if resp.Node != nil || resp.Edge != nil {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, resp)
}

// applyMutation dispatches a validated request to the editor. The response
// carries the view computed by this mutation, not whatever is current once
// the editor lock is released.
func applyMutation(ed *editor.Editor, req *validation.MutationRequest) (MutationResponse, error) {
	resp := MutationResponse{ID: ed.ID(), Op: req.Op}
	var (
		view *pipeline.View
		err  error
	)

	switch req.Op {
	case validation.OpAddNode:
		var n bowtie.Node
		if n, view, err = ed.AddNode(bowtie.Kind(req.Kind), req.Label); err == nil {
			resp.Node = &n
		}
	case validation.OpInsertIntoEdge:
		var n bowtie.Node
		if n, view, err = ed.InsertIntoEdge(req.EdgeID, bowtie.Kind(req.Kind), req.Label); err == nil {
			resp.Node = &n
		}
	case validation.OpConnect:
		var e bowtie.Edge
		if e, view, err = ed.Connect(req.Source, req.Target); err == nil {
			resp.Edge = &e
		}
	case validation.OpUpdateLabel:
		view, err = ed.UpdateLabel(req.NodeID, req.Label)
	case validation.OpUpdateBarrier:
		view, err = ed.UpdateBarrier(req.NodeID, *req.Barrier)
	case validation.OpToggleFailed:
		view, err = ed.ToggleFailed(req.NodeID)
	case validation.OpUpdateRisk:
		view, err = ed.UpdateRisk(req.NodeID, req.Severity, req.Likelihood)
	case validation.OpSetDetails:
		view, err = ed.SetDetails(req.NodeID, req.Details)
	case validation.OpToggleDetails:
		view, err = ed.ToggleDetails(req.NodeID)
	case validation.OpDeleteNode:
		view, err = ed.DeleteNode(req.NodeID)
	case validation.OpDeleteEdge:
		view, err = ed.DeleteEdge(req.EdgeID)
	case validation.OpToggleCollapse:
		view, err = ed.ToggleCollapse(req.NodeID)
	case validation.OpToggleHighlight:
		view, err = ed.ToggleHighlight(req.NodeID)
	case validation.OpClearHighlights:
		view, err = ed.ClearHighlights()
	case validation.OpAutoLayout:
		view, err = ed.AutoLayout()
	default:
		err = validation.ErrInvalidMutation
	}

	if err != nil {
		return MutationResponse{}, err
	}
	resp.View = view
	return resp, nil
}

// mutationStatus maps editor errors to HTTP status codes
func mutationStatus(err error) int {
	switch {
	case errors.Is(err, editor.ErrNodeNotFound), errors.Is(err, editor.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrDuplicateTopEvent), errors.Is(err, editor.ErrSyntheticEdge),
		errors.Is(err, editor.ErrInvalidConnection):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
