// Package server serves a todo store over the REST shape pkg/remote speaks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"tableflip.dev/todosync/pkg/store"
	"tableflip.dev/todosync/pkg/todo"
)

// Server exposes a store.Persistence over HTTP.
type Server struct {
	store  store.Persistence
	logger *slog.Logger
}

// New returns a Server over p. A nil logger means slog.Default().
func New(p store.Persistence, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: p, logger: logger}
}

// Handler routes the todo endpoints with access logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/todos").HandlerFunc(s.list)
	r.Methods(http.MethodPost).Path("/todos").HandlerFunc(s.create)
	r.Methods(http.MethodGet).Path("/todos/{id:[0-9]+}").HandlerFunc(s.get)
	r.Methods(http.MethodPatch).Path("/todos/{id:[0-9]+}").HandlerFunc(s.patch)
	r.Methods(http.MethodDelete).Path("/todos/{id:[0-9]+}").HandlerFunc(s.remove)
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully. Changes
// made to the store directory by other processes are logged.
func (s *Server) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := new(sync.WaitGroup)
	if events, err := s.store.Watch(ctx); err != nil {
		s.logger.Warn("store watch unavailable", "err", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range events {
				s.logger.Info("store changed on disk", "users", ev.Users)
			}
		}()
	}

	httpServer := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errs <- httpServer.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errs:
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		err = httpServer.Shutdown(shutdownCtx)
	}
	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) list(writer http.ResponseWriter, request *http.Request) {
	userID := 0
	if raw := request.URL.Query().Get("userId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			http.Error(writer, "invalid userId", http.StatusBadRequest)
			return
		}
		userID = id
	}
	items, err := s.store.List(request.Context(), userID)
	if err != nil {
		s.fail(writer, err)
		return
	}
	s.reply(writer, http.StatusOK, items)
}

func (s *Server) get(writer http.ResponseWriter, request *http.Request) {
	id, ok := pathID(writer, request)
	if !ok {
		return
	}
	it, err := s.store.Get(id)
	if err != nil {
		s.fail(writer, err)
		return
	}
	s.reply(writer, http.StatusOK, it)
}

func (s *Server) create(writer http.ResponseWriter, request *http.Request) {
	var d todo.Draft
	if err := json.NewDecoder(request.Body).Decode(&d); err != nil {
		http.Error(writer, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	it, err := s.store.Create(d)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	s.reply(writer, http.StatusCreated, it)
}

func (s *Server) patch(writer http.ResponseWriter, request *http.Request) {
	id, ok := pathID(writer, request)
	if !ok {
		return
	}
	var p todo.Patch
	if err := json.NewDecoder(request.Body).Decode(&p); err != nil {
		http.Error(writer, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	it, err := s.store.Patch(id, p)
	if err != nil {
		s.fail(writer, err)
		return
	}
	s.reply(writer, http.StatusOK, it)
}

func (s *Server) remove(writer http.ResponseWriter, request *http.Request) {
	id, ok := pathID(writer, request)
	if !ok {
		return
	}
	if err := s.store.Delete(id); err != nil {
		s.fail(writer, err)
		return
	}
	s.reply(writer, http.StatusOK, struct{}{})
}

func pathID(writer http.ResponseWriter, request *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(request)["id"])
	if err != nil {
		http.Error(writer, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) fail(writer http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(writer, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("store failed", "err", err)
	http.Error(writer, "internal error", http.StatusInternalServerError)
}

func (s *Server) reply(writer http.ResponseWriter, code int, v any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(code)
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		s.logger.Error("failed to write out", "err", err)
	}
}
