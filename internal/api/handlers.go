package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"salon/internal/models"
	"salon/internal/service"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Catalog.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// GET /api/v1/availability?date=YYYY-MM-DD&service=<title>
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	day, _, err := s.parseDateParam(r, "date", true)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	serviceName := strings.TrimSpace(r.URL.Query().Get("service"))

	slots, err := s.svc.Appointments.AvailableSlots(r.Context(), day, serviceName)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":    day.Format(models.DateLayout),
		"service": serviceName,
		"slots":   slots,
	})
}

func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appt, err := s.svc.Appointments.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

type draftRequest struct {
	Step int                    `json:"step"`
	Data map[string]interface{} `json:"data"`
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.Drafts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *HTTPServer) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, err := s.svc.Drafts.Save(r.Context(), mux.Vars(r)["id"], req.Step, req.Data)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *HTTPServer) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Drafts.Clear(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
