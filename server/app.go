// Package server is a read-only HTTP browser over a SQLite export written by
// sqlitedb.
package server

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds server dependencies.
type App struct {
	db  *DB
	log *zap.Logger
}

// NewApp creates an App over an open export database.
func NewApp(db *sql.DB, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{db: NewDB(db), log: log}
}

// Handler returns the HTTP handler (router with CORS, recovery, routes).
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/header", a.handleHeader)
		r.Get("/nodes", a.handleNodes)
		r.Get("/nodes/{uid}", a.handleNode)
		r.Get("/range", a.handleRange)
	})
	return r
}

func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)))
	})
}

// corsMiddleware sets CORS headers for API so a frontend on another port can call.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
