package worker

import (
	"encoding/json"
	"net/http"
)

func (w *Worker) routes() http.Handler {
	mux := http.NewServeMux()
	if w.metrics != nil {
		mux.Handle("/metrics", w.metrics.Handler())
	}
	mux.HandleFunc("/healthz", w.handleHealth)
	mux.HandleFunc("/checkpoints", w.handleCheckpoints)
	return mux
}

// handleHealth reports 503 once shutdown has begun so load balancers stop
// routing to this instance.
func (w *Worker) handleHealth(rw http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	if w.handler.ShuttingDown() {
		status = http.StatusServiceUnavailable
		body["status"] = "shutting_down"
	}
	writeJSON(rw, status, body)
}

func (w *Worker) handleCheckpoints(rw http.ResponseWriter, r *http.Request) {
	all, err := w.opts.Store.All(r.Context())
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, all)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
