package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ServeSSE streams job as server-sent events until the job completes or
// the client goes away.
func ServeSSE(w http.ResponseWriter, r *http.Request, job *JobState, tick time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := relay(r.Context(), job, tick, func(event string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return eris.Wrap(err, "stream: marshal event")
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return eris.Wrap(err, "stream: write event")
		}
		flusher.Flush()
		return nil
	})
	if err != nil && r.Context().Err() == nil {
		zap.L().Warn("stream: sse ended", zap.String("job_id", job.ID()), zap.Error(err))
	}
}
