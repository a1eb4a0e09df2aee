package api

import (
	"net/http"
	"strings"
	"time"

	"salon/internal/service"

	"github.com/gorilla/mux"
)

// GET /dashboard/appointments[?view=day|week|month&date=YYYY-MM-DD]
func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	view := strings.TrimSpace(r.URL.Query().Get("view"))
	if view == "" {
		appts, err := s.svc.Appointments.List(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
		return
	}

	date, ok, err := s.parseDateParam(r, "date", false)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !ok {
		date = time.Now().In(s.location)
	}
	start, end, err := s.svc.Appointments.ViewRange(view, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	appts, err := s.svc.Appointments.ListForView(r.Context(), view, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"view":         view,
		"start":        start,
		"end":          end,
		"appointments": appts,
	})
}

func (s *HTTPServer) handlePendingAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := s.svc.Appointments.ListPending(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.svc.Appointments.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var upd service.AppointmentUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	appt, err := s.svc.Appointments.Update(r.Context(), mux.Vars(r)["id"], upd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.svc.Appointments.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleCompleteAppointment(w http.ResponseWriter, r *http.Request) {
	appt, tx, err := s.svc.Appointments.Complete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment": appt,
		"transaction": tx,
	})
}

// GET /dashboard/clients[?q=]
func (s *HTTPServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	var (
		clients any
		err     error
	)
	if q == "" {
		clients, err = s.svc.Clients.List(r.Context())
	} else {
		clients, err = s.svc.Clients.Search(r.Context(), q)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *HTTPServer) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in service.ClientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	client, err := s.svc.Clients.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *HTTPServer) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.svc.Clients.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var in service.ClientInput
	if !decodeJSON(w, r, &in) {
		return
	}
	client, err := s.svc.Clients.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clients.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClientFromAppointment returns an unsaved client prefilled from an appointment.
func (s *HTTPServer) handleClientFromAppointment(w http.ResponseWriter, r *http.Request) {
	client, err := s.svc.Clients.FromAppointment(r.Context(), mux.Vars(r)["appointmentId"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var in service.ServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	svc, err := s.svc.Catalog.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.svc.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var in service.ServiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	svc, err := s.svc.Catalog.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
