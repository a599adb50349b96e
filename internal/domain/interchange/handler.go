package interchange

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/interchange/internal/platform/auth"
)

type Handler struct {
	importer      *Importer
	exporter      *Exporter
	defaultFormat Format
}

func NewHandler(importer *Importer, exporter *Exporter, defaultFormat Format) *Handler {
	if defaultFormat == "" {
		defaultFormat = FormatCSV
	}
	return &Handler{importer: importer, exporter: exporter, defaultFormat: defaultFormat}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/interchange", auth.RequireRole("admin", "physician", "receptionist"))
	g.POST("/import", h.Import)
	g.GET("/export", h.Export)
}

// importResponse is the summary shown after an import. Row errors are
// reported as a count only.
type importResponse struct {
	RowsProcessed        int    `json:"rows_processed"`
	PatientsCreated      int    `json:"patients_created"`
	PatientsMerged       int    `json:"patients_merged"`
	ConsultationsCreated int    `json:"consultations_created"`
	Warnings             int    `json:"warnings"`
	File                 string `json:"file"`
}

func (h *Handler) Import(c echo.Context) error {
	ctx := c.Request().Context()
	owner := auth.UserIDFromContext(ctx)
	if owner == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	res, err := h.importer.Import(ctx, owner, src, fh.Filename, nil)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, importResponse{
		RowsProcessed:        res.RowsProcessed,
		PatientsCreated:      res.PatientsCreated,
		PatientsMerged:       res.PatientsMerged,
		ConsultationsCreated: res.ConsultationsCreated,
		Warnings:             len(res.Errors),
		File:                 fh.Filename,
	})
}

func httpError(err error) error {
	var aerr *AuthError
	var perr *FileParseError
	switch {
	case errors.As(err, &aerr):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.As(err, &perr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Export(c echo.Context) error {
	ctx := c.Request().Context()
	owner := auth.UserIDFromContext(ctx)
	if owner == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	format := h.defaultFormat
	if q := c.QueryParam("format"); q != "" {
		f, err := ParseFormat(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		format = f
	}

	art, err := h.exporter.Export(ctx, owner, format)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", art.Filename))
	return c.Blob(http.StatusOK, art.ContentType, art.Data)
}
