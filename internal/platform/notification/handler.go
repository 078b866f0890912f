package notification

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the delivery log and manual send operations over HTTP.
// Intended for admin use only; route guards are applied by the caller.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes mounts the notification endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/notifications/send", h.Send)
	g.POST("/notifications/send-template", h.SendTemplate)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/retry", h.Retry)
}

type sendRequest struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
}

// Send handles POST /notifications/send. The message is returned even when
// delivery fails, so the caller sees the assigned ID and failure reason.
func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m := &Message{
		Channel:   req.Channel,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
	}
	_ = h.dispatcher.Deliver(c.Request().Context(), m)
	return c.JSON(http.StatusCreated, m)
}

type sendTemplateRequest struct {
	TemplateID string            `json:"template_id"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data"`
}

// SendTemplate handles POST /notifications/send-template.
func (h *Handler) SendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m, err := h.dispatcher.DeliverTemplate(c.Request().Context(), req.TemplateID, req.Data, req.Recipient)
	if err != nil && m == nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

// Get handles GET /notifications/:id.
func (h *Handler) Get(c echo.Context) error {
	m, err := h.dispatcher.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	return c.JSON(http.StatusOK, m)
}

// List handles GET /notifications?recipient=...
func (h *Handler) List(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}
	return c.JSON(http.StatusOK, h.dispatcher.ListByRecipient(recipient, 100))
}

// Retry handles POST /notifications/:id/retry.
func (h *Handler) Retry(c echo.Context) error {
	id := c.Param("id")
	if err := h.dispatcher.Redeliver(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "message not found")
		}
		if errors.Is(err, ErrNotFailed) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
	}

	m, err := h.dispatcher.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	return c.JSON(http.StatusOK, m)
}

// Stats handles GET /notifications/stats.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dispatcher.Stats())
}
