// Package api serves the line index and departure boards over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/api/handlers"
)

// Deps are the backends the router serves from. Crawl and Reloader are optional.
type Deps struct {
	Lines     handlers.LineRepository
	Timetable handlers.TimetableSource
	Crawl     handlers.CrawlRepository
	Reloader  handlers.Reloader

	AllowedOrigins []string
}

// NewRouter wires every endpoint
func NewRouter(logger *zap.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	healthHandler := handlers.NewHealthHandler(deps.Lines, deps.Reloader)
	linesHandler := handlers.NewLinesHandler(deps.Lines)
	departuresHandler := handlers.NewDeparturesHandler(deps.Timetable)

	r.Get("/health", healthHandler.Health)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/lines", linesHandler.ListLines)
	r.Get("/api/lines/{line}", linesHandler.GetLine)
	r.Get("/api/lines/{line}/directions", linesHandler.GetDirections)
	r.Get("/api/departures", departuresHandler.GetDepartures)
	r.Post("/api/admin/reload", healthHandler.Reload)

	if deps.Crawl != nil {
		crawlHandler := handlers.NewCrawlHandler(deps.Crawl)
		r.Get("/api/crawl/runs", crawlHandler.ListRuns)
	}

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
