// Package httpapi exposes the restore point service as a local JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vortex-go/internal/restore"
)

const maxBodyBytes = 1 << 20

// Backend is what the API needs from the application layer.
type Backend interface {
	ListRestorePoints(ctx context.Context) ([]restore.RestorePoint, error)
	CreateRestorePoint(ctx context.Context, name string) (restore.Result, error)
	DeleteRestorePoint(ctx context.Context, ids restore.Identifiers) (restore.Result, error)
	StorageSummary(ctx context.Context) restore.StorageSummary
	AuditEntries() []restore.AuditEntry
	RecordAudit(ctx context.Context, name, description string) (restore.AuditEntry, error)
	RemoveAudit(ctx context.Context, id int64) (int, error)
}

// Server routes HTTP requests to a Backend.
//
// The API runs elevated. Requests must name a loopback or listen-address Host.
// Browser requests also need a loopback Origin, and state changes a JSON body,
// so web pages cannot reach it through simple requests or DNS rebinding.
type Server struct {
	backend Backend
	logger  *slog.Logger
	router  chi.Router
	hosts   map[string]bool
}

func New(backend Backend, logger *slog.Logger) *Server {
	s := &Server{backend: backend, logger: logger, hosts: map[string]bool{}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.checkHost)
	r.Use(checkOrigin)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Use(requireJSON)
		r.Get("/restore-points", s.listRestorePoints)
		r.Post("/restore-points", s.createRestorePoint)
		r.Post("/restore-points/delete", s.deleteRestorePoint)
		r.Get("/storage", s.storage)
		r.Get("/audit", s.listAudit)
		r.Post("/audit", s.recordAudit)
		r.Delete("/audit/{id}", s.removeAudit)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// AllowHost accepts requests addressed to host in addition to loopback names.
// It must be called before the server starts handling requests.
func (s *Server) AllowHost(host string) {
	if h := hostname(host); h != "" {
		s.hosts[strings.ToLower(h)] = true
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.AllowHost(addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http api: %w", err)
	}
	s.logger.Info("http api stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) checkHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := strings.ToLower(hostname(r.Host))
		if !isLoopback(h) && !s.hosts[h] {
			writeError(w, http.StatusForbidden, "host not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin rejects browser requests sent from pages outside this machine.
// Requests without an Origin header (curl, the CLI) pass.
func checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			u, err := url.Parse(origin)
			if err != nil || !isLoopback(strings.ToLower(u.Hostname())) {
				writeError(w, http.StatusForbidden, "origin not allowed")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireJSON rejects state-changing requests that carry a non-JSON body.
// POST always needs the JSON content type, even when the body is empty.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" && r.Method == http.MethodDelete && r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// hostname strips the port and IPv6 brackets from a host[:port] value.
func hostname(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type pointView struct {
	restore.RestorePoint
	DisplayTime string `json:"displayTime"`
}

type storageView struct {
	restore.StorageSummary
	Total string `json:"total"`
}

type createRequest struct {
	Name string `json:"name"`
}

type auditRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type messageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listRestorePoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.backend.ListRestorePoints(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	views := make([]pointView, 0, len(points))
	for _, p := range points {
		views = append(views, pointView{RestorePoint: p, DisplayTime: p.DisplayTime()})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) createRestorePoint(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.backend.CreateRestorePoint(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeResult(w, res, http.StatusCreated)
}

func (s *Server) deleteRestorePoint(w http.ResponseWriter, r *http.Request) {
	var ids restore.Identifiers
	if err := decodeOptional(r, &ids); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.backend.DeleteRestorePoint(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeResult(w, res, http.StatusOK)
}

func (s *Server) storage(w http.ResponseWriter, r *http.Request) {
	summary := s.backend.StorageSummary(r.Context())
	writeJSON(w, http.StatusOK, storageView{StorageSummary: summary, Total: restore.FormatGiB(summary.TotalBytes)})
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.AuditEntries())
}

func (s *Server) recordAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	entry, err := s.backend.RecordAudit(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) removeAudit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid audit id")
		return
	}

	removed, err := s.backend.RemoveAudit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if removed == 0 {
		writeError(w, http.StatusNotFound, "audit entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// decodeOptional decodes a JSON body into v. An empty body leaves v unchanged.
func decodeOptional(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps a failed Result's error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, restore.ErrUnauthorized), errors.Is(err, restore.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, restore.ErrNoIdentifiers):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeResult(w http.ResponseWriter, res restore.Result, okStatus int) {
	if res.OK {
		writeJSON(w, okStatus, res)
		return
	}
	writeJSON(w, statusFor(res.Err), messageResponse{OK: false, Message: res.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{OK: false, Message: msg})
}
