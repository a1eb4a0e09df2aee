package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salon/internal/models"
)

const streamKeepAlive = 25 * time.Second

// handleAvailabilityStream pushes the free slots of a day as server-sent
// events whenever an appointment of that day changes.
func (s *HTTPServer) handleAvailabilityStream(w http.ResponseWriter, r *http.Request) {
	day, _, err := s.parseDateParam(r, "date", true)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	serviceName := strings.TrimSpace(r.URL.Query().Get("service"))
	ctx := r.Context()

	// одно последнее состояние, промежуточные можно пропустить
	updates := make(chan []string, 1)
	err = s.svc.Appointments.WatchAvailability(ctx, day, serviceName, func(slots []string) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- slots:
		default:
		}
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("streaming not supported")
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	date := day.Format(models.DateLayout)
	for {
		select {
		case <-ctx.Done():
			return
		case slots := <-updates:
			if slots == nil {
				slots = []string{}
			}
			data, err := json.Marshal(map[string]any{"date": date, "service": serviceName, "slots": slots})
			if err != nil {
				s.log.Error().Err(err).Msg("encode availability event")
				return
			}
			if _, err := fmt.Fprintf(w, "event: slots\ndata: %s\n\n", data); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
