package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/service"
)

const keepAliveInterval = 15 * time.Second

type EventSubscriber interface {
	Subscribe(contentID string) chan service.Event
	Unsubscribe(contentID string, ch chan service.Event)
}

type SSEHandler struct {
	events     EventSubscriber
	contentSvc ContentService
	keepAlive  time.Duration
}

func NewSSEHandler(events EventSubscriber, contentSvc ContentService) *SSEHandler {
	return &SSEHandler{
		events:     events,
		contentSvc: contentSvc,
		keepAlive:  keepAliveInterval,
	}
}

type eventView struct {
	Type      string    `json:"type"`
	ContentID string    `json:"content_id"`
	Status    string    `json:"status,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sseWriteJSON(w http.ResponseWriter, eventName string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sseWrite(w, eventName, string(data))
	return nil
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Events streams the pipeline progress of one record. The first event is a
// snapshot of the record; the stream ends once the record reaches a
// terminal status.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		orgID := identity(r).OrgID

		// Subscribe before the snapshot so no transition falls in between.
		ch := h.events.Subscribe(id)
		defer h.events.Unsubscribe(id, ch)

		content, err := h.contentSvc.Get(r.Context(), orgID, id)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		if err := sseWriteJSON(w, "snapshot", content); err != nil {
			return
		}
		if content.IsTerminal() {
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := sseWriteJSON(w, event.Type, eventView{
					Type:      event.Type,
					ContentID: event.ContentID,
					Status:    event.Status,
					Stage:     event.Stage,
					Message:   event.Message,
					At:        event.At,
				}); err != nil {
					return
				}
				if domain.ContentStatus(event.Status).IsTerminal() {
					return
				}
			}
		}
	}
}
