package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dd0wney/cluso-bowtie/pkg/bowtie"
	"github.com/dd0wney/cluso-bowtie/pkg/editor"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/pubsub"
)

// CreateDiagram opens a new diagram, importing doc when it is not empty
func (s *Server) CreateDiagram(doc []byte) (*editor.Editor, []bowtie.Issue, error) {
	id := editor.NewID("diagram")
	ed := s.newEditor(id)

	var warnings []bowtie.Issue
	if len(doc) > 0 {
		var err error
		if warnings, err = ed.Import(doc); err != nil {
			return nil, nil, err
		}
	}
	if err := s.store.Add(ed); err != nil {
		return nil, nil, err
	}
	s.logger.Info("diagram created", logging.DiagramID(id), logging.Int("warnings", len(warnings)))
	return ed, warnings, nil
}

// POST /diagrams
func (s *Server) handleCreateDiagram(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	ed, warnings, err := s.CreateDiagram(body)
	switch {
	case errors.Is(err, ErrTooManyDiagrams):
		s.respondError(w, http.StatusInsufficientStorage, err.Error())
		return
	case errors.Is(err, ErrDiagramExists):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Location", "/diagrams/"+ed.ID())
	s.respondJSON(w, http.StatusCreated, DiagramResponse{ID: ed.ID(), View: ed.View(), Warnings: warnings})
}

// GET /diagrams
func (s *Server) handleListDiagrams(w http.ResponseWriter, r *http.Request) {
	resp := ListResponse{Diagrams: []DiagramSummary{}}
	for _, id := range s.store.IDs() {
		view, ok := s.store.View(id)
		if !ok {
			continue
		}
		resp.Diagrams = append(resp.Diagrams, DiagramSummary{
			ID:               id,
			Nodes:            len(view.Graph.Nodes),
			Edges:            len(view.Graph.Edges),
			TopEventID:       view.Report.TopEventID,
			TopEventBreached: view.Report.TopEventBreached,
			Issues:           len(view.Issues),
		})
	}
	resp.Count = len(resp.Diagrams)
	s.respondJSON(w, http.StatusOK, resp)
}

// GET /diagrams/{id} returns the rendered view
func (s *Server) handleGetDiagram(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.diagram(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, DiagramResponse{ID: ed.ID(), View: ed.View()})
}

// DELETE /diagrams/{id} closes the diagram and ends its event streams
func (s *Server) handleDeleteDiagram(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Delete(id) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("diagram %q not found", id))
		return
	}
	s.publish(id, pubsub.EventDeleted, nil)
	if s.events != nil {
		s.events.Forget(id)
	}
	s.logger.Info("diagram deleted", logging.DiagramID(id))
	w.WriteHeader(http.StatusNoContent)
}

// GET /diagrams/{id}/export returns the canonical document
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.diagram(w, r)
	if !ok {
		return
	}
	data, err := ed.Export()
	if err != nil {
		s.logger.Error("export failed", logging.DiagramID(ed.ID()), logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, ed.ID()))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// POST /diagrams/{id}/import replaces the diagram with the body
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ed, ok := s.diagram(w, r)
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	warnings, err := ed.Import(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, DiagramResponse{ID: ed.ID(), View: ed.View(), Warnings: warnings})
}

// POST /diagrams/{id}/archive writes a snapshot of the canonical document
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		s.respondError(w, http.StatusNotImplemented, "archiving is not configured")
		return
	}
	ed, ok := s.diagram(w, r)
	if !ok {
		return
	}
	data, err := ed.Export()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "export failed")
		return
	}
	rcpt, err := s.archiver.Archive(r.Context(), ed.ID(), data)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, "archive failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, rcpt)
}
