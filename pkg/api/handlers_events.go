package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/pubsub"
)

// GET /diagrams/{id}/events streams views as server-sent events. The
// current view is sent first; after that every change to the diagram
// arrives as a "view" event. A "deleted" event ends the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.respondError(w, http.StatusNotImplemented, "event streams are disabled")
		return
	}
	ed, ok := s.diagram(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	sub, err := s.events.Subscribe(r.Context(), ed.ID())
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer sub.Unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := s.logger.With(logging.DiagramID(ed.ID()))
	logger.Debug("event stream opened")
	defer logger.Debug("event stream closed")

	initial := pubsub.Event{
		DiagramID: ed.ID(),
		Kind:      pubsub.EventView,
		Time:      time.Now().UTC(),
		Payload:   DiagramResponse{ID: ed.ID(), View: ed.View()},
	}
	if err := writeEvent(w, initial); err != nil || rc.Flush() != nil {
		return
	}

	keepAlive := time.NewTicker(s.opts.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		case ev, open := <-sub.Channel():
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				logger.Warn("failed to write event", logging.Error(err))
				return
			}
			if rc.Flush() != nil || ev.Kind == pubsub.EventDeleted {
				return
			}
		}
	}
}

// writeEvent writes ev in text/event-stream framing. The data line is a
// single line of JSON so no escaping is needed.
func writeEvent(w http.ResponseWriter, ev pubsub.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
