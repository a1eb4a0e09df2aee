package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"salon/internal/config"
	"salon/internal/docstore"
	"salon/internal/metrics"
	"salon/internal/models"
	"salon/internal/service"
	"salon/internal/validation"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

// Services are the application services behind the HTTP API.
type Services struct {
	Appointments *service.AppointmentService
	Catalog      *service.CatalogService
	Clients      *service.ClientService
	Finance      *service.FinanceService
	Drafts       *service.DraftService
	Store        Pinger
}

// HTTPServer exposes the public booking API and the dashboard API.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	auth     *Authenticator
	limiter  *rateLimiter
	location *time.Location
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		auth:     NewAuthenticator(cfg.Auth),
		limiter:  newRateLimiter(cfg.RateLimit),
		location: svc.Appointments.Schedule().Location,
		log:      zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(srv.routes(), "salon-http"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

func (s *HTTPServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	// публичная запись
	api.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	api.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodGet)
	api.HandleFunc("/availability/stream", s.handleAvailabilityStream).Methods(http.MethodGet)
	api.HandleFunc("/appointments", s.handleCreateAppointment).Methods(http.MethodPost)

	drafts := api.PathPrefix("/booking/drafts").Subrouter()
	drafts.Use(s.draftLimitMiddleware)
	drafts.HandleFunc("/{id}", s.handleGetDraft).Methods(http.MethodGet)
	drafts.HandleFunc("/{id}", s.handleSaveDraft).Methods(http.MethodPut)
	drafts.HandleFunc("/{id}", s.handleClearDraft).Methods(http.MethodDelete)

	dash := api.PathPrefix("/dashboard").Subrouter()
	dash.Use(s.auth.Middleware)

	dash.HandleFunc("/appointments", s.handleListAppointments).Methods(http.MethodGet)
	dash.HandleFunc("/appointments/pending", s.handlePendingAppointments).Methods(http.MethodGet)
	dash.HandleFunc("/appointments/{id}", s.handleGetAppointment).Methods(http.MethodGet)
	dash.HandleFunc("/appointments/{id}", s.handleUpdateAppointment).Methods(http.MethodPut)
	dash.HandleFunc("/appointments/{id}/cancel", s.handleCancelAppointment).Methods(http.MethodPost)
	dash.HandleFunc("/appointments/{id}/complete", s.handleCompleteAppointment).Methods(http.MethodPost)

	dash.HandleFunc("/clients", s.handleListClients).Methods(http.MethodGet)
	dash.HandleFunc("/clients", s.handleCreateClient).Methods(http.MethodPost)
	dash.HandleFunc("/clients/from-appointment/{appointmentId}", s.handleClientFromAppointment).Methods(http.MethodGet)
	dash.HandleFunc("/clients/{id}", s.handleGetClient).Methods(http.MethodGet)
	dash.HandleFunc("/clients/{id}", s.handleUpdateClient).Methods(http.MethodPut)
	dash.HandleFunc("/clients/{id}", s.handleDeleteClient).Methods(http.MethodDelete)

	dash.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	dash.HandleFunc("/services", s.handleCreateService).Methods(http.MethodPost)
	dash.HandleFunc("/services/{id}", s.handleGetService).Methods(http.MethodGet)
	dash.HandleFunc("/services/{id}", s.handleUpdateService).Methods(http.MethodPut)
	dash.HandleFunc("/services/{id}", s.handleDeleteService).Methods(http.MethodDelete)

	dash.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	dash.HandleFunc("/transactions", s.handleAddTransaction).Methods(http.MethodPost)
	dash.HandleFunc("/transactions/summary", s.handleTransactionSummary).Methods(http.MethodGet)
	dash.HandleFunc("/transactions/recent", s.handleRecentTransactions).Methods(http.MethodGet)
	dash.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	dash.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	dash.HandleFunc("/reports.xlsx", s.handleReportsXLSX).Methods(http.MethodGet)
	dash.HandleFunc("/reports/{key:[a-z]+}.csv", s.handleReportCSV).Methods(http.MethodGet)
	dash.HandleFunc("/reports/{key:[a-z]+}", s.handleGetReport).Methods(http.MethodGet)

	dash.HandleFunc("/stats/overview", s.handleOverview).Methods(http.MethodGet)
	dash.HandleFunc("/stats/revenue", s.handleMonthlyRevenue).Methods(http.MethodGet)
	dash.HandleFunc("/stats/popular-services", s.handlePopularServices).Methods(http.MethodGet)

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
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

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = r.Method + " " + tpl
			}
		}
		metrics.IncHTTP(endpoint)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(s.auth.apiKeyHeader()))
		if key == "" {
			key = clientIP(r)
		}
		if !s.limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// draftLimitMiddleware counts draft requests per client IP in the draft repository,
// so the limit holds across instances sharing Redis.
func (s *HTTPServer) draftLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.Drafts.Allow(r.Context(), "draft:"+clientIP(r)); err != nil {
			s.writeServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// writeServiceError maps service and store errors to HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verrs,
		})
	case errors.Is(err, service.ErrServiceNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validation.Errors{{Field: "serviceId", Message: "unknown service"}},
		})
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrSlotTaken),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAppointmentClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, context.Canceled):
		// клиент ушёл
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parseDateParam reads a YYYY-MM-DD query parameter as midnight in the schedule location.
func (s *HTTPServer) parseDateParam(r *http.Request, name string, required bool) (time.Time, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if required {
			return time.Time{}, false, validation.Field(name, "is required")
		}
		return time.Time{}, false, nil
	}
	day, err := time.ParseInLocation(models.DateLayout, raw, s.location)
	if err != nil {
		return time.Time{}, false, validation.Field(name, "must be a date formatted as "+models.DateLayout)
	}
	return day, true, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach Flush on the stream endpoint.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
