package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Resolver VideoResolver
	Limiter  RateLimiter
	Events   EventRecorder
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	download := DownloadHandler{Resolver: deps.Resolver, Limiter: deps.Limiter, Events: deps.Events}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.HandleFunc("POST /api/download", download.Resolve)
}
