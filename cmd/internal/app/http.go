package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Server.ReadinessRequireDB && a.store.name != "postgres" {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if err := a.store.ping(r.Context()); err != nil {
			a.log.Info("readyz.db.not_ready", "engine", a.store.name, "err", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	a.authAPI.Register(mux)
	a.oauthAPI.Register(mux)

	return WithRequestLogging(WithRecovery(mux, a.log), a.log)
}
