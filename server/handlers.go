package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (a *App) handleHeader(w http.ResponseWriter, r *http.Request) {
	h, err := a.db.Header(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, h)
}

func (a *App) handleNodes(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit, atoiErr := strconv.Atoi(limitStr)
	if limitStr != "" && atoiErr != nil {
		a.log.Warn("nodes: invalid limit, using default", zap.String("limit", limitStr))
	}
	nodes, err := a.db.Nodes(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, nodes)
}

func (a *App) handleNode(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	d, err := a.db.Node(r.Context(), uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "node not found", http.StatusNotFound)
			return
		}
		a.fail(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (a *App) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		http.Error(w, "missing query parameter path", http.StatusBadRequest)
		return
	}
	line, err := strconv.Atoi(q.Get("line"))
	if err != nil || line < 1 {
		http.Error(w, "query parameter line must be a positive integer", http.StatusBadRequest)
		return
	}
	endLine := line
	if s := q.Get("end_line"); s != "" {
		if endLine, err = strconv.Atoi(s); err != nil {
			http.Error(w, "query parameter end_line must be an integer", http.StatusBadRequest)
			return
		}
	}
	matches, err := a.db.Range(r.Context(), path, line, endLine)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(matches) == 0 {
		a.log.Warn("no node at range", zap.String("path", path), zap.Int("line", line), zap.Int("end_line", endLine))
	}
	writeJSON(w, matches)
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	a.log.Error("query failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
