package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking-engine/internal/appointment"
	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

const tuesday = "2026-10-20"

type testServer struct {
	handler http.Handler
	avail   *availability.Service
	doctor  uuid.UUID
}

func newTestServer(t *testing.T, mutate func(cfg *RouterConfig)) *testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	avail := availability.NewService(availability.NewMemoryRepository(), 0, zerolog.Nop())
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	appts := appointment.NewService(
		appointment.NewMemoryRepository(),
		avail,
		redisclient.NewLocalLocker(time.Second),
		config.Config{BookingCutoff: 15 * time.Minute, PaymentHoldTTL: 15 * time.Minute},
		appointment.WithClock(func() time.Time { return now }),
		appointment.WithMetrics(metrics.New(reg, "clinic")),
	)

	cfg := RouterConfig{
		Appointments: appts,
		Availability: avail,
		Gatherer:     reg,
		Logger:       zerolog.Nop(),
		Env:          "test",
		Version:      "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	doctor := uuid.New()
	_, err := avail.UpsertDay(context.Background(), doctor, availability.DayInput{
		Date: tuesday, StartTime: "09:00", EndTime: "10:00", DurationMinutes: 15, SessionCapacity: 3,
	})
	require.NoError(t, err)

	return &testServer{handler: NewRouter(cfg), avail: avail, doctor: doctor}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) book(t *testing.T, start string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, "/appointments", map[string]any{
		"doctor_id":    s.doctor.String(),
		"patient_id":   uuid.NewString(),
		"date":         tuesday,
		"start_time":   start,
		"patient_name": "Jane Roe",
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestBookAndFetchAppointment(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.book(t, "09:15")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[appointment.Appointment](t, rec)
	assert.Equal(t, appointment.StatusBooked, created.Status)
	assert.Equal(t, 1, created.QueueNo)
	assert.Equal(t, "09:30", created.EndTime)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/appointments/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ReferenceNo, decode[appointment.Appointment](t, rec).ReferenceNo)

	rec = s.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBook_ErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, s.book(t, "09:00").Code)

	rec := s.book(t, "09:00")
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_taken", resp.Error)
	require.NotNil(t, resp.Rule)
	assert.Equal(t, tuesday, resp.Rule.Date)
	assert.Equal(t, "09:00", resp.Rule.StartTime)

	rec = s.book(t, "11:00")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "outside_working_hours", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/appointments", map[string]any{
		"doctor_id":  uuid.NewString(),
		"patient_id": uuid.NewString(),
		"date":       tuesday,
		"start_time": "09:00",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "availability_not_configured", decode[ErrorResponse](t, rec).Error)
}

func TestBook_SessionFull(t *testing.T) {
	s := newTestServer(t, nil)
	for _, start := range []string{"09:00", "09:15", "09:30"} {
		require.Equal(t, http.StatusCreated, s.book(t, start).Code)
	}

	rec := s.book(t, "09:45")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_full", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/sessions?date="+tuesday, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode[SessionsResponse](t, rec)
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, appointment.SessionFull, sessions.Sessions[0].Status)
	assert.Equal(t, 3, sessions.Sessions[0].ActiveAppointments)
}

func TestBook_RequestValidation(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"missing doctor", map[string]any{"patient_id": uuid.NewString(), "date": tuesday, "start_time": "09:00"}, "doctor_id"},
		{"bad date", map[string]any{"doctor_id": s.doctor.String(), "patient_id": uuid.NewString(), "date": "20/10/2026", "start_time": "09:00"}, "date"},
		{"bad time", map[string]any{"doctor_id": s.doctor.String(), "patient_id": uuid.NewString(), "date": tuesday, "start_time": "nine"}, "start_time"},
		{"bad email", map[string]any{"doctor_id": s.doctor.String(), "patient_id": uuid.NewString(), "date": tuesday, "start_time": "09:00", "patient_email": "nope"}, "patient_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/appointments", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "validation_failed", resp.Error)
			assert.Equal(t, tt.wantField, resp.Field)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)
}

func TestStatusRescheduleAndConfirm(t *testing.T) {
	s := newTestServer(t, nil)
	created := decode[appointment.Appointment](t, s.book(t, "09:00"))
	base := "/appointments/" + created.ID.String()

	rec := s.do(t, http.MethodPost, base+"/reschedule", RescheduleRequest{Date: tuesday, StartTime: "09:45"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "09:45", decode[appointment.Appointment](t, rec).StartTime)

	rec = s.do(t, http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.StatusConfirmed, decode[appointment.Appointment](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/status", ChangeStatusRequest{Status: "Cancelled", Reason: "travel"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[appointment.Appointment](t, rec)
	assert.Equal(t, appointment.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "travel", *got.CancelReason)

	rec = s.do(t, http.MethodPost, base+"/status", ChangeStatusRequest{Status: "CheckedIn"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, base+"/reschedule", RescheduleRequest{Date: tuesday, StartTime: "09:15"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "appointment_finalized", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, base+"/status", ChangeStatusRequest{Status: "Lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndPurge(t *testing.T) {
	s := newTestServer(t, nil)
	patient := uuid.New()
	rec := s.do(t, http.MethodPost, "/appointments", map[string]any{
		"doctor_id": s.doctor.String(), "patient_id": patient.String(), "date": tuesday, "start_time": "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, http.StatusCreated, s.book(t, "09:15").Code)

	rec = s.do(t, http.MethodGet, "/appointments?patient_id="+patient.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ListResponse[appointment.Appointment]](t, rec).Count)

	rec = s.do(t, http.MethodGet, "/appointments?patient_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	doctorPath := "/doctors/" + s.doctor.String() + "/appointments?date=" + tuesday
	rec = s.do(t, http.MethodGet, doctorPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[ListResponse[appointment.Appointment]](t, rec).Count)

	rec = s.do(t, http.MethodDelete, doctorPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[PurgeResponse](t, rec).Deleted)

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/slots?date="+tuesday, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 4)
}

func TestAvailabilityEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	doctor := uuid.NewString()
	base := "/doctors/" + doctor + "/availability"

	rec := s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, availability.DefaultSessionCapacity, decode[availability.Availability](t, rec).SessionCapacity)

	rec = s.do(t, http.MethodPost, base+"/days", UpsertDayRequest{
		Date: tuesday, StartTime: "10:00", EndTime: "09:00", DurationMinutes: 15, SessionCapacity: 3,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_availability_input", resp.Error)
	assert.Equal(t, "time", resp.Field)

	rec = s.do(t, http.MethodPut, base, SetAvailabilityRequest{
		DurationMinutes: 30,
		SessionCapacity: 4,
		Timezone:        "UTC",
		WeeklyHours:     map[string][]schedule.Range{"tue": {{Start: "08:00", End: "10:00"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 30, decode[availability.Availability](t, rec).DurationMinutes)

	rec = s.do(t, http.MethodPost, base+"/breaks", ExceptionRequest{
		Start:  time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 10, 20, 9, 30, 0, 0, time.UTC),
		Reason: "rounds",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	brk := decode[availability.Exception](t, rec)

	rec = s.do(t, http.MethodGet, "/doctors/"+doctor+"/slots?date="+tuesday, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 3)

	rec = s.do(t, http.MethodDelete, base+"/exceptions/"+brk.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, base+"/exceptions/"+brk.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/blocks", map[string]any{"reason": "missing dates"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	healthy := func(context.Context) error { return nil }

	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Dependencies = []Dependency{
			{Name: "postgres", Critical: true, Ping: healthy},
			{Name: "redis", Ping: failing},
		}
	})

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "down"}, ready.Dependencies)

	require.Equal(t, http.StatusCreated, s.book(t, "09:00").Code)
	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_booking_attempts_total{outcome="success"} 1`)

	down := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Dependencies = []Dependency{{Name: "postgres", Critical: true, Ping: failing}}
	})
	rec = down.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 1
	})

	require.Equal(t, http.StatusCreated, s.book(t, "09:00").Code)
	rec := s.book(t, "09:15")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// reads are not limited
	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/sessions?date="+tuesday, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
