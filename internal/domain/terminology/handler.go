package terminology

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/careagent/internal/platform/auth"
	"github.com/ehr/careagent/internal/platform/fhir"
	"github.com/ehr/careagent/pkg/pagination"
)

// Handler provides REST endpoints for terminology services.
type Handler struct {
	svc *Service
}

// NewHandler creates a new terminology handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers terminology routes on the API and FHIR groups.
func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	termGroup := api.Group("/terminology", auth.RequireRole(auth.RoleClinician, auth.RoleReviewer))
	termGroup.GET("/icd10", h.SearchICD10)
	termGroup.GET("/snomed", h.SearchSNOMED)
	termGroup.GET("/entities", h.ListEntities)
	termGroup.GET("/entities/:name", h.GetEntity)

	fhirTerm := fhirGroup.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleReviewer))
	fhirTerm.POST("/CodeSystem/$lookup", h.FHIRLookup)
	fhirTerm.POST("/CodeSystem/$validate-code", h.FHIRValidateCode)
}

// SearchICD10 handles GET /api/v1/terminology/icd10?q=...
func (h *Handler) SearchICD10(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	results, err := h.svc.SearchICD10(c.Request().Context(), query, pagination.FromContext(c).Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

// SearchSNOMED handles GET /api/v1/terminology/snomed?q=...
func (h *Handler) SearchSNOMED(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	results, err := h.svc.SearchSNOMED(c.Request().Context(), query, pagination.FromContext(c).Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

// ListEntities handles GET /api/v1/terminology/entities
func (h *Handler) ListEntities(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":  h.svc.Version(),
		"entities": h.svc.Entities(),
	})
}

// GetEntity handles GET /api/v1/terminology/entities/:name
func (h *Handler) GetEntity(c echo.Context) error {
	entry, err := h.svc.CodesForEntity(c.Request().Context(), c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

// FHIRLookup handles POST /fhir/CodeSystem/$lookup
func (h *Handler) FHIRLookup(c echo.Context) error {
	var req LookupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	resp, err := h.svc.Lookup(c.Request().Context(), &req)
	if err != nil {
		return c.JSON(http.StatusNotFound, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, resp)
}

// FHIRValidateCode handles POST /fhir/CodeSystem/$validate-code
func (h *Handler) FHIRValidateCode(c echo.Context) error {
	var req ValidateCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	resp, err := h.svc.ValidateCode(c.Request().Context(), &req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, resp)
}
