package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"salon/internal/docstore"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 20, 9, 30, 0, 0, time.UTC)

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType, documentID string, payload interface{}) error {
	return m.Called(ctx, taskType, documentID, payload).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func setupStore(t *testing.T) *docstore.Store {
	t.Helper()
	logger := zerolog.Nop()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "salon.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type fixture struct {
	store        *docstore.Store
	catalog      *CatalogService
	appointments *AppointmentService
	finance      *FinanceService
	clients      *ClientService
	bus          *recordingPublisher
	sync         *mockSyncWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	store := setupStore(t)
	bus := &recordingPublisher{}
	syncWorker := new(mockSyncWorker)
	syncWorker.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	catalog := NewCatalogService(store, &logger)
	catalog.now = func() time.Time { return testNow }

	appts := NewAppointmentService(store, catalog, bus, syncWorker, Schedule{Location: time.UTC}, &logger)
	appts.now = func() time.Time { return testNow }

	fin := NewFinanceService(store, bus, syncWorker, time.UTC, &logger)
	fin.now = func() time.Time { return testNow }

	clients := NewClientService(store, &logger)
	clients.now = func() time.Time { return testNow }

	return &fixture{
		store:        store,
		catalog:      catalog,
		appointments: appts,
		finance:      fin,
		clients:      clients,
		bus:          bus,
		sync:         syncWorker,
	}
}

func (f *fixture) addService(t *testing.T, title string, price float64, duration int) *models.Service {
	t.Helper()
	svc, err := f.catalog.Create(context.Background(), ServiceInput{Title: title, Price: price, Duration: duration})
	require.NoError(t, err)
	return svc
}

func (f *fixture) book(t *testing.T, service, date, slot string) *models.Appointment {
	t.Helper()
	appt, err := f.appointments.Create(context.Background(), BookingRequest{
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Phone:    "+55 11 99999-0000",
		Service:  service,
		Date:     date,
		TimeSlot: slot,
	})
	require.NoError(t, err)
	return appt
}
