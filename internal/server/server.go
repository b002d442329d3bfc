package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/internal"
	"github.com/turbolytics/resultset/pkg/persistence"
)

// Query is a named statement served over HTTP.
type Query struct {
	Name   string
	Source internal.Source
	Target string
	Args   []any
}

type Server struct {
	logger  *zap.Logger
	types   *persistence.Types
	queries map[string]Query
	mu      sync.RWMutex
}

type QueryResult struct {
	Count int   `json:"count"`
	Items []any `json:"items"`
}

func NewServer(logger *zap.Logger, types *persistence.Types) *Server {
	if types == nil {
		types = persistence.NewTypes()
	}
	return &Server{
		logger:  logger,
		types:   types,
		queries: make(map[string]Query),
	}
}

func (s *Server) RegisterQuery(q Query) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries[q.Name] = q
	s.logger.Info("query registered",
		zap.String("query", q.Name),
		zap.String("source", q.Source.Name()))
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api/v1/queries", func(r chi.Router) {
		r.Get("/", s.listQueries)
		r.Get("/{name}", s.runQuery)
		r.Get("/{name}/count", s.countQuery)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				zap.String("from", r.RemoteAddr),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.queries))
	for name := range s.queries {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)

	writeJSON(w, http.StatusOK, map[string]any{
		"queries": names,
		"types":   s.types.Names(),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Query, bool) {
	name := chi.URLParam(r, "name")

	s.mu.RLock()
	q, exists := s.queries[name]
	s.mu.RUnlock()

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "query not found"})
	}
	return q, exists
}

func (s *Server) countQuery(w http.ResponseWriter, r *http.Request) {
	q, ok := s.lookup(w, r)
	if !ok {
		return
	}

	n, err := internal.Count(r.Context(), q.Source, q.Target, q.Args...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request) {
	q, ok := s.lookup(w, r)
	if !ok {
		return
	}

	single := false
	if v := r.URL.Query().Get("single"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid single parameter"})
			return
		}
		single = b
	}

	var typ persistence.Type
	as := r.URL.Query().Get("as")
	if as != "" {
		t, err := s.types.Lookup(as)
		if err != nil {
			s.writeError(w, err)
			return
		}
		typ = t
	}

	c, err := q.Source.Query(r.Context(), q.Target, q.Args...)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if single {
		var item any
		if as != "" {
			item, err = c.HydrateSingleResultAs(typ)
		} else {
			item, err = c.SingleResult()
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
		return
	}

	if as != "" {
		c, err = c.HydrateResultItemsAs(typ)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	items := c.ToSlice()
	if items == nil {
		items = []any{}
	}
	writeJSON(w, http.StatusOK, QueryResult{
		Count: c.Count(),
		Items: items,
	})
}

// StatusFor maps persistence errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrEmptyQueryResult):
		return http.StatusNotFound
	case errors.Is(err, persistence.ErrNotUniqueQueryResult):
		return http.StatusConflict
	case errors.Is(err, persistence.ErrNotConstructableFromRecord):
		return http.StatusBadRequest
	case errors.Is(err, persistence.ErrCanOnlyHydrateFromRecord):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("query failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	s.logger.Info("starting server", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
