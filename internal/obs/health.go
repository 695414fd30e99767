package obs

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is the health endpoint's report. LastPublishAgeSec is negative
// until the first successful publish.
type Stats struct {
	Status            string  `json:"status"`
	State             string  `json:"state"`
	DeviceID          string  `json:"device_id"`
	LastPublishAgeSec float64 `json:"last_publish_age_sec"`
}

type healthHandler struct {
	stats func() Stats
}

// NewHealthHandler serves the caller's live view of node health. Always
// 200: the body carries ok/degraded/down, probes key off the field.
func NewHealthHandler(stats func() Stats) http.Handler {
	return &healthHandler{stats: stats}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.stats())
}

// NewServer mounts /healthz and /metrics on addr. The caller starts it and
// shuts it down.
func NewServer(addr string, reg *prometheus.Registry, stats func() Stats) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/healthz", NewHealthHandler(stats))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
