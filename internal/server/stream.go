package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"taskline/internal/bus"
	"taskline/internal/event"
)

// registerStream exposes applied events as server-sent events. Delivery is
// best-effort: a client that falls behind misses entries and should re-read
// /events.
func registerStream(r chi.Router, basePath string, b *bus.Bus) {
	r.Get(path.Join(basePath, "events/stream"), func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "streaming unsupported", nil))
			return
		}
		ch, cancel := b.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-req.Context().Done():
				return
			case entry, open := <-ch:
				if !open {
					return
				}
				raw, err := event.Marshal(entry.Event)
				if err != nil {
					continue
				}
				frame, _ := json.Marshal(struct {
					Seq   uint64          `json:"seq"`
					Event json.RawMessage `json:"event"`
				}{Seq: entry.Seq, Event: raw})
				fmt.Fprintf(w, "data: %s\n\n", frame)
				flusher.Flush()
			}
		}
	})
}
