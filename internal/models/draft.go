package models

import "time"

// Шаги мастера публичной записи
const (
	DraftStepService  = 1
	DraftStepDateTime = 2
	DraftStepDetails  = 3
)

// BookingDraft keeps the progress of the public booking wizard between requests.
type BookingDraft struct {
	ID        string                 `json:"id"`
	Step      int                    `json:"step"`
	Data      map[string]interface{} `json:"data"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Next moves the wizard forward; the last step is sticky.
func (d *BookingDraft) Next() {
	if d.Step < DraftStepDetails {
		d.Step++
	}
}

// Back moves the wizard backwards; the first step is sticky.
func (d *BookingDraft) Back() {
	if d.Step > DraftStepService {
		d.Step--
	}
}

func (d *BookingDraft) GetString(key string) string {
	if d.Data == nil {
		return ""
	}
	val, ok := d.Data[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (d *BookingDraft) GetTime(key string) time.Time {
	if d.Data == nil {
		return time.Time{}
	}
	val, ok := d.Data[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339, DateLayout} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
