package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

// New builds the router. trustProxy lets RealIP rewrite RemoteAddr from
// X-Forwarded-For and X-Real-IP.
func New(timeout time.Duration, trustProxy bool) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	m := chi.NewRouter()

	// all middlewares go before any route
	if trustProxy {
		m.Use(chimw.RealIP)
	}
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(timeout))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}

// Static serves dir for every path no API route claims.
func (s *Server) Static(dir string) {
	s.mux.NotFound(http.FileServer(http.Dir(dir)).ServeHTTP)
}
