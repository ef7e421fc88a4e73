package server

import (
	"net/http"
	"time"
)

// NewHTTPServer serves the websocket endpoint, a health check and, when
// metrics is non-nil, the metrics handler at metricsPath.
func NewHTTPServer(addr string, hub *Hub, metrics http.Handler, metricsPath string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		mux.Handle(metricsPath, metrics)
	}
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
