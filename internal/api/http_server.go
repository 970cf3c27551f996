package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/metrics"
	"barberbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Services bundles what the transports call into.
type Services struct {
	Availability *service.AvailabilityService
	Booking      *service.BookingService
	Catalog      *service.CatalogService
	Drafts       *service.DraftService
	// Health reports storage reachability for /healthz. Optional.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the booking API over JSON.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, svc: svc, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the full middleware chain, used directly by tests.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/v1/services", s.handleServices)
	mux.HandleFunc("GET /api/v1/professionals", s.handleProfessionals)
	mux.HandleFunc("GET /api/v1/availability", s.handleAvailability)

	mux.HandleFunc("POST /api/v1/appointments", s.handleCreateAppointment)
	mux.HandleFunc("GET /api/v1/appointments", s.handleListAppointments)
	mux.HandleFunc("GET /api/v1/appointments/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/appointments/{id}", s.handleGetAppointment)
	mux.HandleFunc("POST /api/v1/appointments/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", s.handleCancel)

	mux.HandleFunc("POST /api/v1/drafts", s.handleCreateDraft)
	mux.HandleFunc("GET /api/v1/drafts/{id}", s.handleGetDraft)
	mux.HandleFunc("PATCH /api/v1/drafts/{id}", s.handleUpdateDraft)
	mux.HandleFunc("DELETE /api/v1/drafts/{id}", s.handleDeleteDraft)
	mux.HandleFunc("POST /api/v1/drafts/{id}/submit", s.handleSubmitDraft)

	return s.loggingMiddleware(mux, s.auth.Wrap(mux))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		l := s.logger.With().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		r = r.WithContext(l.WithContext(r.Context()))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.IncHTTP(pattern, strconv.Itoa(recorder.status))

		ev := l.Debug()
		if recorder.status >= http.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: code, Message: message})
}

// writeServiceError logs unexpected failures and renders the mapped response.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := describeError(err)
	if code == http.StatusInternalServerError {
		requestLogger(r.Context(), s.logger).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

