package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/config"
	"salon/internal/docstore"
	"salon/internal/events"
	"salon/internal/models"
	"salon/internal/repository"
	"salon/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey      = "dash-key"
	testReadOnlyKey = "read-key"
	testJWTSecret   = "test-secret"
	testIssuer      = "https://auth.example.com"
	testAudience    = "salon-dashboard"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

type testEnv struct {
	store   *docstore.Store
	catalog *service.CatalogService
	server  *HTTPServer
	handler http.Handler
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: testAPIKey, Name: "owner"},
				{Key: testReadOnlyKey, Name: "viewer", Permissions: []string{permRead}},
			},
			JWT: config.JWTConfig{Secret: testJWTSecret, Issuer: testIssuer, Audience: testAudience},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.APIConfig, *Services)) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	store, err := docstore.Open(filepath.Join(t.TempDir(), "salon.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewEventBus(&logger)
	catalog := service.NewCatalogService(store, &logger)
	svc := Services{
		Appointments: service.NewAppointmentService(store, catalog, bus, nil, service.Schedule{Location: time.UTC}, &logger),
		Catalog:      catalog,
		Clients:      service.NewClientService(store, &logger),
		Finance:      service.NewFinanceService(store, bus, nil, time.UTC, &logger),
		Drafts:       service.NewDraftService(repository.NewMemoryDraftRepository(time.Hour), 100, time.Minute, &logger),
		Store:        store,
	}

	cfg := testAPIConfig()
	for _, m := range mutate {
		m(&cfg, &svc)
	}

	srv := NewHTTPServer(cfg, svc, &logger)
	return &testEnv{store: store, catalog: catalog, server: srv, handler: srv.Handler()}
}

func (e *testEnv) addService(t *testing.T, title string, price float64, duration int) *models.Service {
	t.Helper()
	svc, err := e.catalog.Create(context.Background(), service.ServiceInput{Title: title, Price: price, Duration: duration})
	require.NoError(t, err)
	return svc
}

// do runs a request against the handler; body is JSON encoded unless nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) dash(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, "/api/v1/dashboard"+path, body, map[string]string{"x-api-key": testAPIKey})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func futureDate() string {
	d := time.Now().UTC().AddDate(0, 0, 7)
	if d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(models.DateLayout)
}

func bookingBody(service, date, slot string) map[string]string {
	return map[string]string{
		"name":     "Ana Souza",
		"email":    "ana@example.com",
		"phone":    "+55 11 98888-7777",
		"service":  service,
		"date":     date,
		"timeSlot": slot,
	}
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		Email: "owner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}
