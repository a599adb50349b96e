package interchange

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/interchange/internal/platform/auth"
)

func newTestServer(store *MemoryStore, user string, roles ...string) *echo.Echo {
	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user != "" {
				ctx := auth.WithUser(c.Request().Context(), user, roles)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	})
	ex := NewExporter(store)
	ex.now = func() time.Time { return fixedNow }
	NewHandler(newTestImporter(store), ex, FormatCSV).RegisterRoutes(api)
	return e
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHandler_Import(t *testing.T) {
	store := NewMemoryStore()
	e := newTestServer(store, owner, "physician")

	body, ct := multipartBody(t, "file", "pacientes.csv", "Nombre,Edad,Notas\nAna Ruiz,30,Control\n,40,\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interchange/import", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.RowsProcessed)
	assert.Equal(t, 1, resp.PatientsCreated)
	assert.Equal(t, 1, resp.ConsultationsCreated)
	assert.Equal(t, 1, resp.Warnings)
	assert.Equal(t, "pacientes.csv", resp.File)
}

func TestHandler_ImportMissingFile(t *testing.T) {
	e := newTestServer(NewMemoryStore(), owner, "physician")
	body, ct := multipartBody(t, "other", "x.csv", "Nombre\nAna\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interchange/import", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ImportUnparseable(t *testing.T) {
	e := newTestServer(NewMemoryStore(), owner, "physician")
	body, ct := multipartBody(t, "file", "x.csv", "Nombre,Edad\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interchange/import", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RequiresRole(t *testing.T) {
	e := newTestServer(NewMemoryStore(), owner, "billing")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/interchange/export", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_Export(t *testing.T) {
	store := NewMemoryStore()
	importString(t, newTestImporter(store), "Nombre\nAna Ruiz\n")
	e := newTestServer(store, owner, "receptionist")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/interchange/export", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="pacientes_respaldo_2025-06-10.csv"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF\"ID Sistema\""))
	assert.Contains(t, rec.Body.String(), `"Ana Ruiz"`)
}

func TestHandler_ExportFormats(t *testing.T) {
	e := newTestServer(NewMemoryStore(), owner, "admin")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/interchange/export?format=xlsx", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), ".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/interchange/export?format=pdf", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
