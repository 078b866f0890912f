package documents

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
)

// Handler exposes the document lifecycle over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the document endpoints on the given group. Static
// routes are registered before the :id routes so "templates" and friends are
// not parsed as document IDs.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/documents", h.Create)
	g.GET("/documents/doctor", h.ListForDoctor)
	g.GET("/documents/patient", h.ListForPatient)
	g.GET("/documents/templates", h.Templates)
	g.GET("/documents/stats", h.Stats)
	g.POST("/documents/ai-summary", h.Summary)
	g.GET("/documents/:id", h.Get)
	g.GET("/documents/:id/download", h.Download)
	g.PUT("/documents/:id", h.Update)
	g.DELETE("/documents/:id", h.Delete)
}

// callerFrom builds the service-level caller from the authenticated request.
func callerFrom(c echo.Context) (Caller, error) {
	ctx := c.Request().Context()
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	role := Role(auth.RoleFromContext(ctx))
	switch role {
	case RoleDoctor, RolePatient, RoleAdmin:
	default:
		return Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "unknown role")
	}
	return Caller{ID: uid, Role: role}, nil
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// createRequest is the JSON body for POST /documents. Multipart uploads carry
// the same fields as form values plus a "file" part.
type createRequest struct {
	Title      string     `json:"title" form:"title"`
	Type       Type       `json:"type" form:"type"`
	Content    string     `json:"content" form:"content"`
	PatientID  string     `json:"patient_id" form:"patient_id"`
	HospitalID string     `json:"hospital_id" form:"hospital_id"`
	Draft      bool       `json:"draft" form:"draft"`
	Signature  *Signature `json:"signature"`
}

// Create handles POST /documents.
func (h *Handler) Create(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	var req createRequest
	var file multipart.File
	var fileName string

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		req.Title = c.FormValue("title")
		req.Type = Type(c.FormValue("type"))
		req.Content = c.FormValue("content")
		req.PatientID = c.FormValue("patient_id")
		req.HospitalID = c.FormValue("hospital_id")
		req.Draft, _ = strconv.ParseBool(c.FormValue("draft"))
		if sig := c.FormValue("signature"); sig != "" {
			req.Signature = &Signature{}
			if err := json.Unmarshal([]byte(sig), req.Signature); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid signature payload")
			}
		}

		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
			}
			defer f.Close()
			file = f
			fileName = fh.Filename
		}
	} else {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	in := CreateInput{
		Title:     req.Title,
		Type:      req.Type,
		Content:   req.Content,
		PatientID: patientID,
		Signature: req.Signature,
		Draft:     req.Draft,
		FileName:  fileName,
	}
	if req.HospitalID != "" {
		hid, err := uuid.Parse(req.HospitalID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
		}
		in.HospitalID = &hid
	}
	if file != nil {
		in.File = file
	}

	rec, err := h.service.Create(c.Request().Context(), caller, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		if errors.Is(err, ErrNotAuthorized) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		if strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "invalid document type") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// Get handles GET /documents/:id.
func (h *Handler) Get(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	rec, err := h.service.Get(c.Request().Context(), caller, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Download handles GET /documents/:id/download and streams the artifact.
func (h *Handler) Download(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	rc, rec, err := h.service.Download(c.Request().Context(), caller, id)
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()

	name := "document.pdf"
	if rec.File != nil && rec.File.Name != "" {
		name = rec.File.Name
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, name))
	return c.Stream(http.StatusOK, "application/pdf", rc)
}

// updateRequest is the JSON body for PUT /documents/:id. Absent fields are
// left unchanged.
type updateRequest struct {
	Title     *string    `json:"title"`
	Content   *string    `json:"content"`
	Signature *Signature `json:"signature"`
	Status    *Status    `json:"status"`
}

// Update handles PUT /documents/:id.
func (h *Handler) Update(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := h.service.Update(c.Request().Context(), caller, id, UpdateInput{
		Title:     req.Title,
		Content:   req.Content,
		Signature: req.Signature,
		Status:    req.Status,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /documents/:id.
func (h *Handler) Delete(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}

	if err := h.service.SoftDelete(c.Request().Context(), caller, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListForDoctor handles GET /documents/doctor.
func (h *Handler) ListForDoctor(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	f := ListFilter{
		Type:   Type(c.QueryParam("type")),
		Status: Status(c.QueryParam("status")),
	}
	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}

	p := pagination.FromContext(c)
	items, total, err := h.service.ListForDoctor(c.Request().Context(), caller, f, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

// ListForPatient handles GET /documents/patient. Results are grouped by
// document type; content stays sealed in listings.
func (h *Handler) ListForPatient(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}

	p := pagination.FromContext(c)
	items, total, err := h.service.ListForPatient(c.Request().Context(), caller, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(GroupByType(items), total, p.Limit, p.Offset))
}

// Templates handles GET /documents/templates.
func (h *Handler) Templates(c echo.Context) error {
	if _, err := callerFrom(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Templates())
}

// Stats handles GET /documents/stats.
func (h *Handler) Stats(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.service.StatsForDoctor(c.Request().Context(), caller)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// summaryRequest is the JSON body for POST /documents/ai-summary.
type summaryRequest struct {
	Type    Type              `json:"type"`
	Content map[string]string `json:"content"`
}

// Summary handles POST /documents/ai-summary. Summaries come from a static
// per-type template table; no external model is involved.
func (h *Handler) Summary(c echo.Context) error {
	if _, err := callerFrom(c); err != nil {
		return err
	}

	var req summaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"summary": Summarize(req.Type, req.Content),
	})
}
