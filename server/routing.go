package server

import (
	"net/http"
)

// Handler returns the root handler: system routes under /_/ and one route
// per operation, all behind CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /_/health", s.HandleHealth)
	mux.HandleFunc("GET /_/operations", s.HandleOperations)
	mux.HandleFunc("GET /_/client.js", s.HandleClient)
	mux.Handle("GET /_/metrics", s.metrics.Handler())
	mux.Handle("/{id}", s.pipeline)
	mux.HandleFunc("/", s.handleNotFound)

	return s.corsMiddleware(mux)
}

// corsMiddleware adds CORS headers using server.allowed_origins.
// Config is read per request so reloads apply without a restart.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.Config()
		origin := r.Header.Get("Origin")

		if origin != "" && checkOrigin(origin, cfg.GetServerAllowedOrigins()) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if cfg.Server.DevMode {
			w.Header().Set("Access-Control-Allow-Methods", "*")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		} else {
			// Operations only ever use GET (queries) and POST (commands)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
