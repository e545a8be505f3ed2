package turn

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/careagent/internal/platform/auth"
	"github.com/ehr/careagent/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the turn and review routes. submitMW wraps only
// POST /turns, which is where rate limiting belongs.
func (h *Handler) RegisterRoutes(api *echo.Group, submitMW ...echo.MiddlewareFunc) {
	turns := api.Group("/turns", auth.RequireRole(auth.RolePatient, auth.RoleClinician))
	turns.POST("", h.Submit, submitMW...)
	turns.GET("", h.ListMine)
	turns.GET("/:id", h.Get)

	review := api.Group("", auth.RequireRole(auth.RoleReviewer))
	review.GET("/review-queue", h.ReviewQueue)
	review.POST("/turns/:id/review", h.Review)
}

// Submit handles POST /api/v1/turns
func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Submit(c.Request().Context(), &req)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// Get handles GET /api/v1/turns/:id. Callers without a clinical role only see
// their own turns.
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, id)
	if err != nil {
		return errorStatus(err)
	}
	if rec.UserID != auth.UserIDFromContext(ctx) && !auth.HasRole(ctx, auth.RoleClinician, auth.RoleReviewer) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// ListMine handles GET /api/v1/turns
func (h *Handler) ListMine(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMine(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ReviewQueue handles GET /api/v1/review-queue
func (h *Handler) ReviewQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ReviewQueue(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// Review handles POST /api/v1/turns/:id/review
func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Review(c.Request().Context(), id, &req)
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func errorStatus(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownMode), errors.Is(err, ErrInvalidAction), errors.Is(err, ErrNoteRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
