package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/interchange/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func authedContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, owner string) echo.Context {
	req = req.WithContext(auth.WithUser(req.Context(), owner, []string{"physician"}))
	return e.NewContext(req, rec)
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	seed(t, h.svc, "dr-ruiz", "Ana Ruiz", "Luis Gómez")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?limit=1", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "dr-ruiz")

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []Patient `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 1 {
		t.Errorf("expected 1 of 2 patients, got %d of %d", len(resp.Data), resp.Total)
	}
}

func TestHandler_ListPatients_Unauthenticated(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.ListPatients(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	p := seed(t, h.svc, "dr-ruiz", "Ana Ruiz")[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := authedContext(e, req, rec, "dr-ruiz")
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()

	for _, id := range []string{"not-a-uuid", uuid.New().String()} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := authedContext(e, req, httptest.NewRecorder(), "dr-ruiz")
		c.SetParamNames("id")
		c.SetParamValues(id)

		if err := h.GetPatient(c); err == nil {
			t.Errorf("expected error for id %s", id)
		}
	}
}
