package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salon/internal/availability"
	"salon/internal/docstore"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/metrics"
	"salon/internal/models"
	"salon/internal/repository"
	"salon/internal/validation"

	"github.com/rs/zerolog"
)

// Режимы отображения календаря записей
const (
	ViewDay   = "day"
	ViewWeek  = "week"
	ViewMonth = "month"
)

// Schedule is the working week of the salon. A nil ClosedWeekdays closes
// Sundays; an empty non-nil one keeps every day open.
type Schedule struct {
	Slots           []string
	Location        *time.Location
	DefaultDuration int
	ClosedWeekdays  []time.Weekday
}

const closedDayMessage = "salon is closed on this day"

type AppointmentService struct {
	store        domain.Store
	appointments *repository.Collection[models.Appointment, *models.Appointment]
	transactions *repository.Collection[models.Transaction, *models.Transaction]
	catalog      *CatalogService
	eventBus     domain.EventPublisher
	syncWorker   domain.SyncWorker
	schedule     Schedule
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewAppointmentService(store domain.Store, catalog *CatalogService, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, schedule Schedule, logger *zerolog.Logger) *AppointmentService {
	if len(schedule.Slots) == 0 {
		schedule.Slots = models.DefaultTimeSlots()
	}
	if schedule.Location == nil {
		schedule.Location = time.Local
	}
	if schedule.DefaultDuration <= 0 {
		schedule.DefaultDuration = models.DefaultServiceDuration
	}
	if schedule.ClosedWeekdays == nil {
		schedule.ClosedWeekdays = []time.Weekday{time.Sunday}
	}
	return &AppointmentService{
		store:        store,
		appointments: repository.NewCollection[models.Appointment](store, models.CollectionAppointments),
		transactions: repository.NewCollection[models.Transaction](store, models.CollectionTransactions),
		catalog:      catalog,
		eventBus:     eventBus,
		syncWorker:   syncWorker,
		schedule:     schedule,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *AppointmentService) Schedule() Schedule { return s.schedule }

func (s *AppointmentService) calculator(durations availability.Durations) availability.Calculator {
	return availability.Calculator{
		Slots:           s.schedule.Slots,
		Location:        s.schedule.Location,
		Durations:       durations,
		DefaultDuration: s.schedule.DefaultDuration,
	}
}

func (s *AppointmentService) inSchedule(slot string) bool {
	for _, v := range s.schedule.Slots {
		if v == slot {
			return true
		}
	}
	return false
}

// IsClosed reports whether the salon takes no bookings on the calendar day of day.
func (s *AppointmentService) IsClosed(day time.Time) bool {
	wd := day.In(s.schedule.Location).Weekday()
	for _, closed := range s.schedule.ClosedWeekdays {
		if wd == closed {
			return true
		}
	}
	return false
}

func (s *AppointmentService) today() time.Time {
	n := s.now().In(s.schedule.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.schedule.Location)
}

// dayQuery selects the appointments dated on the calendar day of day.
func (s *AppointmentService) dayQuery(day time.Time) docstore.Query {
	d := day.In(s.schedule.Location)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.schedule.Location)
	return docstore.NewQuery().
		Where("date", docstore.OpGte, start).
		Where("date", docstore.OpLt, start.AddDate(0, 0, 1)).
		OrderBy("date", false)
}

// Create books a new pending appointment. The slot check and the write share
// one transaction, so two requests cannot take the same slot.
func (s *AppointmentService) Create(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !s.inSchedule(req.TimeSlot) {
		return nil, validation.Field("timeSlot", "is not in the schedule")
	}
	day, err := parseDay("date", req.Date, s.schedule.Location)
	if err != nil {
		return nil, err
	}
	if day.Before(s.today()) {
		return nil, validation.Field("date", "must not be in the past")
	}
	if s.IsClosed(day) {
		return nil, validation.Field("date", closedDayMessage)
	}
	start, err := atSlot(day, req.TimeSlot)
	if err != nil {
		return nil, err
	}

	svc, err := s.catalog.Resolve(ctx, req.ServiceID, req.Service)
	if err != nil {
		return nil, err
	}
	durations, err := s.catalog.Durations(ctx)
	if err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		Name:         trimmed(req.Name),
		Email:        trimmed(req.Email),
		Phone:        trimmed(req.Phone),
		ServiceID:    svc.ID,
		ServiceName:  svc.Title,
		ServicePrice: svc.Price,
		Date:         start,
		TimeSlot:     req.TimeSlot,
		Status:       models.StatusPending,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    s.now(),
	}

	calc := s.calculator(durations)
	err = s.store.Batch(ctx, func(tx *docstore.Tx) error {
		sameDay, err := s.appointments.In(tx).Find(ctx, s.dayQuery(day))
		if err != nil {
			return err
		}
		if !calc.Fits(day, appt.TimeSlot, svc.DurationOrDefault(), sameDay) {
			return ErrSlotTaken
		}
		_, err = s.appointments.In(tx).Add(ctx, appt)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("service", appt.ServiceName).
		Str("date", appt.Date.Format(models.DateLayout)).
		Str("slot", appt.TimeSlot).
		Msg("Appointment created")

	metrics.IncAppointment(models.StatusPending)
	s.publishEvent(events.EventAppointmentCreated, appt)
	s.enqueueSync(ctx, models.SyncUpsertAppointment, appt.ID, appt)
	return appt, nil
}

// Cancel frees the slot. No compensating action is taken.
func (s *AppointmentService) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	var appt *models.Appointment
	err := s.store.Batch(ctx, func(tx *docstore.Tx) error {
		var err error
		appt, err = s.transition(ctx, tx, id, models.StatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("appointment_id", id).Msg("Appointment cancelled")
	metrics.IncAppointment(models.StatusCancelled)
	s.publishEvent(events.EventAppointmentCancelled, appt)
	s.enqueueSync(ctx, models.SyncAppointmentStatus, appt.ID, statusPayload{Status: appt.Status})
	return appt, nil
}

// Complete closes the appointment and records its revenue at the stored price.
// Both writes commit together.
func (s *AppointmentService) Complete(ctx context.Context, id string) (*models.Appointment, *models.Transaction, error) {
	var (
		appt    *models.Appointment
		revenue *models.Transaction
	)
	err := s.store.Batch(ctx, func(tx *docstore.Tx) error {
		var err error
		appt, err = s.transition(ctx, tx, id, models.StatusCompleted)
		if err != nil {
			return err
		}
		revenue = &models.Transaction{
			Description: appt.ServiceName,
			Category:    models.CategoryWork,
			Date:        s.now(),
			Amount:      appt.ServicePrice,
			Type:        models.TransactionRevenue,
		}
		_, err = s.transactions.In(tx).Add(ctx, revenue)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("appointment_id", id).
		Str("transaction_id", revenue.ID).
		Float64("amount", revenue.Amount).
		Msg("Appointment completed")

	metrics.IncAppointment(models.StatusCompleted)
	s.publishEvent(events.EventAppointmentCompleted, appt)
	publishTransaction(s.eventBus, s.logger, revenue, appt.ID)
	s.enqueueSync(ctx, models.SyncAppointmentStatus, appt.ID, statusPayload{Status: appt.Status})
	s.enqueueSync(ctx, models.SyncAppendTransaction, revenue.ID, revenue)
	return appt, revenue, nil
}

func (s *AppointmentService) transition(ctx context.Context, tx *docstore.Tx, id, status string) (*models.Appointment, error) {
	appt, err := s.appointments.In(tx).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, status)
	}
	if err := s.appointments.In(tx).Update(ctx, id, map[string]interface{}{"status": status}); err != nil {
		return nil, err
	}
	appt.Status = status
	return appt, nil
}

// Update applies a dashboard edit to a pending appointment. Moving it to
// another day, slot or service re-checks availability without counting itself.
func (s *AppointmentService) Update(ctx context.Context, id string, upd AppointmentUpdate) (*models.Appointment, error) {
	if err := validation.Struct(upd); err != nil {
		return nil, err
	}
	if upd.TimeSlot != nil && !s.inSchedule(*upd.TimeSlot) {
		return nil, validation.Field("timeSlot", "is not in the schedule")
	}

	var svc *models.Service
	if upd.ServiceID != nil {
		var err error
		if svc, err = s.catalog.Resolve(ctx, *upd.ServiceID, ""); err != nil {
			return nil, err
		}
	}
	durations, err := s.catalog.Durations(ctx)
	if err != nil {
		return nil, err
	}
	calc := s.calculator(durations)

	var appt *models.Appointment
	err = s.store.Batch(ctx, func(tx *docstore.Tx) error {
		current, err := s.appointments.In(tx).Get(ctx, id)
		if err != nil {
			return err
		}
		if current.IsFinal() {
			return fmt.Errorf("%w: %s", ErrAppointmentClosed, current.Status)
		}

		next := *current
		if err := s.applyUpdate(&next, upd, svc); err != nil {
			return err
		}
		if upd.Date != nil && s.IsClosed(next.Date) {
			return validation.Field("date", closedDayMessage)
		}

		if !next.Date.Equal(current.Date) || next.TimeSlot != current.TimeSlot || next.ServiceName != current.ServiceName {
			sameDay, err := s.appointments.In(tx).Find(ctx, s.dayQuery(next.Date))
			if err != nil {
				return err
			}
			others := make([]*models.Appointment, 0, len(sameDay))
			for _, a := range sameDay {
				if a.ID != id {
					others = append(others, a)
				}
			}
			if !calc.Fits(next.Date, next.TimeSlot, calc.DurationOf(next.ServiceName), others) {
				return ErrSlotTaken
			}
		}

		if err := s.appointments.In(tx).Replace(ctx, id, &next); err != nil {
			return err
		}
		appt = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventAppointmentUpdated, appt)
	s.enqueueSync(ctx, models.SyncUpsertAppointment, appt.ID, appt)
	return appt, nil
}

func (s *AppointmentService) applyUpdate(a *models.Appointment, upd AppointmentUpdate, svc *models.Service) error {
	if upd.Name != nil {
		a.Name = trimmed(*upd.Name)
	}
	if upd.Email != nil {
		a.Email = trimmed(*upd.Email)
	}
	if upd.Phone != nil {
		a.Phone = trimmed(*upd.Phone)
	}
	if upd.Notes != nil {
		a.Notes = strings.TrimSpace(*upd.Notes)
	}
	if svc != nil {
		a.ServiceID = svc.ID
		a.ServiceName = svc.Title
		a.ServicePrice = svc.Price
	}
	if upd.TimeSlot != nil {
		a.TimeSlot = *upd.TimeSlot
	}
	if upd.Date != nil || upd.TimeSlot != nil {
		day := a.Date.In(s.schedule.Location)
		if upd.Date != nil {
			var err error
			if day, err = parseDay("date", *upd.Date, s.schedule.Location); err != nil {
				return err
			}
		}
		start, err := atSlot(day, a.TimeSlot)
		if err != nil {
			return err
		}
		a.Date = start
	}
	return nil
}

func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// List returns every appointment, newest date first.
func (s *AppointmentService) List(ctx context.Context) ([]*models.Appointment, error) {
	return s.appointments.Find(ctx, docstore.NewQuery().OrderBy("date", true))
}

// ListPending returns pending appointments from today on, soonest first.
func (s *AppointmentService) ListPending(ctx context.Context) ([]*models.Appointment, error) {
	q := docstore.NewQuery().
		Where("status", docstore.OpIn, models.StatusValues(models.StatusPending)).
		Where("date", docstore.OpGte, s.today()).
		OrderBy("date", false)
	return s.appointments.Find(ctx, q)
}

// ViewRange returns the [start, end) interval shown by a calendar view
// around date. Weeks start on Sunday.
func (s *AppointmentService) ViewRange(view string, date time.Time) (time.Time, time.Time, error) {
	d := date.In(s.schedule.Location)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.schedule.Location)
	switch view {
	case ViewDay, "":
		return day, day.AddDate(0, 0, 1), nil
	case ViewWeek:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 7), nil
	case ViewMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, s.schedule.Location)
		return start, start.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, validation.Field("view", "must be one of: day week month")
}

// ListForView returns the appointments of the day, week or month around date.
func (s *AppointmentService) ListForView(ctx context.Context, view string, date time.Time) ([]*models.Appointment, error) {
	start, end, err := s.ViewRange(view, date)
	if err != nil {
		return nil, err
	}
	q := docstore.NewQuery().
		Where("date", docstore.OpGte, start).
		Where("date", docstore.OpLt, end).
		OrderBy("date", false)
	return s.appointments.Find(ctx, q)
}

// AvailableSlots returns the free start slots of day. With a service name
// only starts where the whole service fits are returned. Closed days have none.
func (s *AppointmentService) AvailableSlots(ctx context.Context, day time.Time, serviceName string) ([]string, error) {
	if s.IsClosed(day) {
		return []string{}, nil
	}
	durations, err := s.catalog.Durations(ctx)
	if err != nil {
		return nil, err
	}
	sameDay, err := s.appointments.Find(ctx, s.dayQuery(day))
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return s.freeSlots(s.calculator(durations), day, serviceName, sameDay), nil
}

func (s *AppointmentService) freeSlots(calc availability.Calculator, day time.Time, serviceName string, appts []*models.Appointment) []string {
	if serviceName == "" {
		return calc.Free(day, appts)
	}
	return calc.FreeFor(day, appts, calc.DurationOf(serviceName))
}

// IsSlotAvailable reports whether slot is free on day.
func (s *AppointmentService) IsSlotAvailable(ctx context.Context, day time.Time, slot string) (bool, error) {
	if s.IsClosed(day) {
		return false, nil
	}
	durations, err := s.catalog.Durations(ctx)
	if err != nil {
		return false, err
	}
	sameDay, err := s.appointments.Find(ctx, s.dayQuery(day))
	if err != nil {
		return false, err
	}
	return s.calculator(durations).IsSlotAvailable(day, slot, sameDay), nil
}

// WatchAvailability calls fn with the free slots of day now and after every
// change to the appointments of that day, until ctx is done. A closed day
// reports one empty list and nothing after it.
func (s *AppointmentService) WatchAvailability(ctx context.Context, day time.Time, serviceName string, fn func([]string)) error {
	if s.IsClosed(day) {
		fn([]string{})
		return nil
	}
	durations, err := s.catalog.Durations(ctx)
	if err != nil {
		return err
	}
	calc := s.calculator(durations)
	return s.appointments.Watch(ctx, s.dayQuery(day), func(appts []*models.Appointment) {
		fn(s.freeSlots(calc, day, serviceName, appts))
	})
}

type statusPayload struct {
	Status string `json:"status"`
}

func (s *AppointmentService) publishEvent(eventType string, appt *models.Appointment) {
	if s.eventBus == nil {
		return
	}

	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		Name:          appt.Name,
		Email:         appt.Email,
		Phone:         appt.Phone,
		ServiceName:   appt.ServiceName,
		ServicePrice:  appt.ServicePrice,
		Date:          appt.Date,
		TimeSlot:      appt.TimeSlot,
		Status:        appt.Status,
		Notes:         appt.Notes,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("publish event error")
	}
}

func (s *AppointmentService) enqueueSync(ctx context.Context, taskType, documentID string, payload interface{}) {
	enqueueSync(ctx, s.syncWorker, s.logger, taskType, documentID, payload)
}

func enqueueSync(ctx context.Context, w domain.SyncWorker, logger *zerolog.Logger, taskType, documentID string, payload interface{}) {
	if w == nil {
		return
	}
	if err := w.EnqueueTask(ctx, taskType, documentID, payload); err != nil {
		logger.Error().Err(err).Str("document_id", documentID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func publishTransaction(bus domain.EventPublisher, logger *zerolog.Logger, t *models.Transaction, appointmentID string) {
	if bus == nil {
		return
	}
	payload := events.TransactionEventPayload{
		TransactionID: t.ID,
		AppointmentID: appointmentID,
		Description:   t.Description,
		Category:      t.Category,
		Amount:        t.Amount,
		Type:          t.Type,
		Date:          t.Date,
	}
	if err := bus.PublishJSON(events.EventTransactionRecorded, payload); err != nil {
		logger.Error().Err(err).Str("transaction_id", t.ID).Msg("publish event error")
	}
}
