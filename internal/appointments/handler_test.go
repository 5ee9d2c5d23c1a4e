package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestCreateHandlerPersistsEntityLinks(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newTestService(t, gw)
	h := NewHandler(svc, nil)

	projectID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "uid_1", pgxmock.AnyArg(), 30, StatusScheduled,
			"Jane Doe", "jane@example.com", "", pgxmock.AnyArg(),
			&projectID, (*uuid.UUID)(nil), &userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testUUID()))

	body := `{
		"start": "2024-01-02T13:00:00Z",
		"name": "Jane Doe",
		"email": "jane@example.com",
		"project_id": "11111111-1111-1111-1111-111111111111",
		"user_id": "22222222-2222-2222-2222-222222222222"
	}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["appointment_id"] != testUUID().String() {
		t.Fatalf("unexpected appointment id: %v", resp["appointment_id"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateHandlerRejectsBadEntityLink(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newTestService(t, gw)
	h := NewHandler(svc, nil)

	body := `{"start": "2024-01-02T13:00:00Z", "name": "Jane", "email": "jane@example.com", "client_id": "not-a-uuid"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if gw.createCalls != 0 {
		t.Fatal("gateway must not be called for invalid input")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetHandler(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newTestService(t, gw)
	h := NewHandler(svc, nil)

	start := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM appointments").
		WithArgs("uid_1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "booking_uid", "start_time", "duration_minutes", "status",
			"contact_name", "contact_email", "contact_phone", "metadata",
			"project_id", "client_id", "user_id", "created_at", "updated_at",
		}).AddRow(
			testUUID(), "uid_1", &start, 30, StatusScheduled,
			"Jane Doe", "jane@example.com", "", []byte("{}"),
			(*uuid.UUID)(nil), (*uuid.UUID)(nil), (*uuid.UUID)(nil), now, now,
		))

	req := newURLParamRequest(http.MethodGet, "/bookings/uid_1", "uid", "uid_1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK          bool        `json:"ok"`
		Appointment Appointment `json:"appointment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Appointment.BookingUID != "uid_1" || resp.Appointment.Status != StatusScheduled {
		t.Fatalf("unexpected appointment: %+v", resp.Appointment)
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	gw := &fakeGateway{}
	svc, mock := newTestService(t, gw)
	h := NewHandler(svc, nil)

	mock.ExpectQuery("FROM appointments").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	req := newURLParamRequest(http.MethodGet, "/bookings/missing", "uid", "missing")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func newURLParamRequest(method, target, key, value string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
