package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/pkg/response"
)

type SiteHandler struct {
	siteService  *services.SiteService
	phaseService *services.PhaseService
}

func NewSiteHandler(siteService *services.SiteService, phaseService *services.PhaseService) *SiteHandler {
	return &SiteHandler{siteService: siteService, phaseService: phaseService}
}

// List returns the sites visible to the caller
// GET /api/sites
func (h *SiteHandler) List(c *gin.Context) {
	var req services.SiteListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.siteService.List(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetByID returns the site with its ordered phases and tasks
// GET /api/sites/:id
func (h *SiteHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid site id")
		return
	}

	site, err := h.siteService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, site)
}

// POST /api/sites
func (h *SiteHandler) Create(c *gin.Context) {
	var req services.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	site, err := h.siteService.Create(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, site)
}

// PUT /api/sites/:id
func (h *SiteHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid site id")
		return
	}

	var req services.UpdateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	site, err := h.siteService.Update(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, site)
}

// DELETE /api/sites/:id
func (h *SiteHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid site id")
		return
	}

	if err := h.siteService.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "site deleted"})
}

// GET /api/holiday-countries
func (h *SiteHandler) HolidayCountries(c *gin.Context) {
	response.Success(c, h.siteService.HolidayCountries())
}

// GET /api/sites/:id/employees
func (h *SiteHandler) ListEmployees(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid site id")
		return
	}

	employees, err := h.siteService.ListEmployees(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, employees)
}

// AssignEmployees replaces the site's employee set
// PUT /api/sites/:id/employees
func (h *SiteHandler) AssignEmployees(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid site id")
		return
	}

	var req services.SiteEmployeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.siteService.AssignEmployees(c.Request.Context(), actorFrom(c), id, req.EmployeeIDs); err != nil {
		response.Error(c, err)
		return
	}

	employees, err := h.siteService.ListEmployees(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, employees)
}

// AddPhase inserts a phase at the requested position
// POST /api/sites/:id/phases
func (h *SiteHandler) AddPhase(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid site id")
		return
	}

	var req services.CreatePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	phase, err := h.phaseService.AddPhase(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, phase)
}
