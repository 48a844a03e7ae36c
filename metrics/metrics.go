// Package metrics serves the pipeline's Prometheus registry over HTTP.
package metrics

import (
	"net/http"
	"time"
)

// NewServer 构建指标 HTTP 服务；handler 来自 monitor.Handler()，
// 用独立 mux 避免污染 http.DefaultServeMux。
func NewServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
