package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"collabspace/logging"
	"collabspace/services"
)

const keepAliveInterval = 25 * time.Second

type StreamHandler struct {
	Watcher *services.VisibilityWatcher
}

func NewStreamHandler(watcher *services.VisibilityWatcher) *StreamHandler {
	return &StreamHandler{Watcher: watcher}
}

// Visibility streams the caller's visible teams and projects as server-sent
// events, one "visibility" event per change.
func (h *StreamHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	updates, err := h.Watcher.Subscribe(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut the stream.
	rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.Logger.Errorf("Event ID: STREAM_UNSUPPORTED, Description: response cannot be flushed: %v", err)
		return
	}
	logging.Logger.Infof("Event ID: STREAM_OPENED, Description: Visibility stream opened for user %s", user.ID)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				logging.Logger.Infof("Event ID: STREAM_CLOSED, Description: Visibility stream closed for user %s", user.ID)
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				logging.Logger.Errorf("Event ID: STREAM_ENCODE_FAILED, Description: %v", err)
				return
			}
			fmt.Fprintf(w, "event: visibility\ndata: %s\n\n", data)
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
