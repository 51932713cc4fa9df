package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc), env, echo.New()
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"patient_id":"` + uuid.NewString() + `","service_point":"triage"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var entry Entry
	json.Unmarshal(rec.Body.Bytes(), &entry)
	if entry.TicketNumber != "T-001" {
		t.Errorf("ticket = %s, want T-001", entry.TicketNumber)
	}
}

func TestHandler_Create_DuplicateReturns200(t *testing.T) {
	h, _, e := newTestHandler()
	patientID := uuid.NewString()
	body := `{"patient_id":"` + patientID + `","service_point":"triage"}`

	for i, want := range []int{http.StatusCreated, http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/queue", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := h.Create(c); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if rec.Code != want {
			t.Errorf("attempt %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestHandler_Create_GateFailureIs422(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"patient_id":"` + uuid.NewString() + `","service_point":"cashier"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	if code := httpCode(t, err); code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", code)
	}
}

func TestHandler_Get_NotFoundIs404(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.Get(c)
	if code := httpCode(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_UpdateStatus_InvalidTransitionIs409(t *testing.T) {
	h, env, e := newTestHandler()

	entry, err := env.svc.Create(context.Background(), CreateRequest{PatientID: uuid.New(), ServicePoint: Triage, CreatedBy: "reception"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.UpdateStatus(context.Background(), entry.ID, StatusServing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := `{"status":"called"}`
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(entry.ID.String())

	err = h.UpdateStatus(c)
	if code := httpCode(t, err); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_Archive_ActiveEntryIs409(t *testing.T) {
	h, env, e := newTestHandler()

	entry, err := env.svc.Create(context.Background(), CreateRequest{PatientID: uuid.New(), ServicePoint: Triage, CreatedBy: "reception"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(entry.ID.String())

	err = h.Archive(c)
	if code := httpCode(t, err); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_TimeSummary(t *testing.T) {
	h, env, e := newTestHandler()

	entry, err := env.svc.Create(context.Background(), CreateRequest{PatientID: uuid.New(), ServicePoint: Triage, CreatedBy: "reception"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(entry.ID.String())

	if err := h.TimeSummary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var ts TimeSummary
	json.Unmarshal(rec.Body.Bytes(), &ts)
	if !ts.InProgress {
		t.Error("new entry should be in progress")
	}
}

func TestHandler_Cleanup_BadServicePointIs400(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("servicePoint")
	c.SetParamValues("triage")

	err := h.Cleanup(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}
