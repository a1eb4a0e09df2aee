package availability

import (
	"time"

	"salon/internal/models"
)

// Durations maps a service name to its duration in minutes.
type Durations map[string]int

// Calculator derives free time slots of a day from its appointments.
//
// Slots are ordered "HH:MM" labels, each SlotMinutes long. With nil Durations
// every appointment occupies only its start slot; otherwise it occupies
// ceil(duration/SlotMinutes) consecutive slots, and services missing from the
// table use DefaultDuration.
type Calculator struct {
	Slots           []string
	Location        *time.Location
	Durations       Durations
	DefaultDuration int
}

// SlotsNeeded returns how many consecutive slots a booking of minutes occupies.
func SlotsNeeded(minutes int) int {
	if minutes <= 0 {
		minutes = models.DefaultServiceDuration
	}
	return (minutes + models.SlotMinutes - 1) / models.SlotMinutes
}

func (c Calculator) index(slot string) int {
	for i, s := range c.Slots {
		if s == slot {
			return i
		}
	}
	return -1
}

// DurationOf returns the minutes a booking of serviceName occupies.
func (c Calculator) DurationOf(serviceName string) int {
	if c.Durations == nil {
		return models.SlotMinutes
	}
	if d, ok := c.Durations[serviceName]; ok && d > 0 {
		return d
	}
	if c.DefaultDuration > 0 {
		return c.DefaultDuration
	}
	return models.DefaultServiceDuration
}

// Span returns the schedule labels covered by a booking of minutes starting
// at start. Slots past the end of the day are dropped; an unknown start yields nil.
func (c Calculator) Span(start string, minutes int) []string {
	i := c.index(start)
	if i < 0 {
		return nil
	}
	end := i + SlotsNeeded(minutes)
	if end > len(c.Slots) {
		end = len(c.Slots)
	}
	return c.Slots[i:end]
}

// Booked returns the labels occupied on day by non-cancelled appointments.
func (c Calculator) Booked(day time.Time, appointments []*models.Appointment) map[string]bool {
	booked := make(map[string]bool)
	for _, a := range appointments {
		if a == nil || a.IsCancelled() || !a.OnDay(day, c.Location) {
			continue
		}
		for _, slot := range c.Span(a.TimeSlot, c.DurationOf(a.ServiceName)) {
			booked[slot] = true
		}
	}
	return booked
}

// Free returns the ordered labels of day that no appointment occupies.
func (c Calculator) Free(day time.Time, appointments []*models.Appointment) []string {
	booked := c.Booked(day, appointments)
	free := make([]string, 0, len(c.Slots))
	for _, slot := range c.Slots {
		if !booked[slot] {
			free = append(free, slot)
		}
	}
	return free
}

// FreeFor returns the start labels where a booking of minutes fits without
// touching an occupied slot.
func (c Calculator) FreeFor(day time.Time, appointments []*models.Appointment, minutes int) []string {
	booked := c.Booked(day, appointments)
	free := make([]string, 0, len(c.Slots))
	for _, slot := range c.Slots {
		if fits(c.Span(slot, minutes), booked) {
			free = append(free, slot)
		}
	}
	return free
}

// IsSlotAvailable reports whether slot is a schedule label not occupied on day.
func (c Calculator) IsSlotAvailable(day time.Time, slot string, appointments []*models.Appointment) bool {
	if c.index(slot) < 0 {
		return false
	}
	return !c.Booked(day, appointments)[slot]
}

// Fits reports whether a booking of minutes at start is within the schedule
// and overlaps no occupied slot of day.
func (c Calculator) Fits(day time.Time, start string, minutes int, appointments []*models.Appointment) bool {
	span := c.Span(start, minutes)
	if len(span) == 0 {
		return false
	}
	return fits(span, c.Booked(day, appointments))
}

func fits(span []string, booked map[string]bool) bool {
	for _, s := range span {
		if booked[s] {
			return false
		}
	}
	return len(span) > 0
}
