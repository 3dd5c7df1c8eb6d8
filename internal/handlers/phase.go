package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/pkg/response"
)

type PhaseHandler struct {
	phaseService *services.PhaseService
}

func NewPhaseHandler(phaseService *services.PhaseService) *PhaseHandler {
	return &PhaseHandler{phaseService: phaseService}
}

type CompleteRequest struct {
	Message string `json:"message"`
}

// GET /api/phases/:id
func (h *PhaseHandler) GetDetails(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	details, err := h.phaseService.GetDetails(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, details)
}

// PUT /api/phases/:id
func (h *PhaseHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req services.UpdatePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	phase, err := h.phaseService.UpdatePhase(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, phase)
}

// DELETE /api/phases/:id
func (h *PhaseHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	if err := h.phaseService.DeletePhase(c.Request.Context(), actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "phase deleted"})
}

// POST /api/phases/:id/assign
func (h *PhaseHandler) Assign(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req services.AssignPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	phase, err := h.phaseService.Assign(c.Request.Context(), actorFrom(c), id, req.EmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, phase)
}

// POST /api/phases/:id/updates
func (h *PhaseHandler) AddUpdate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req services.PhaseProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	phase, err := h.phaseService.RecordProgress(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, phase)
}

// POST /api/phases/:id/complete
func (h *PhaseHandler) Complete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req CompleteRequest
	_ = c.ShouldBindJSON(&req)

	phase, err := h.phaseService.Complete(c.Request.Context(), actorFrom(c), id, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, phase)
}

// POST /api/phases/:id/approve
func (h *PhaseHandler) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	phase, err := h.phaseService.Approve(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, phase)
}

// POST /api/phases/:id/reject
func (h *PhaseHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req services.RejectRequest
	_ = c.ShouldBindJSON(&req)

	phase, err := h.phaseService.Reject(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, phase)
}

// POST /api/phases/:id/todos
func (h *PhaseHandler) AddTodo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req services.TodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	todo, err := h.phaseService.AddTodo(c.Request.Context(), actorFrom(c), id, req.Title)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, todo)
}

// PUT /api/phase-todos/:id/toggle
func (h *PhaseHandler) ToggleTodo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid todo id")
		return
	}

	todo, err := h.phaseService.ToggleTodo(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, todo)
}

// POST /api/phases/:id/messages
func (h *PhaseHandler) SendMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid phase id")
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.phaseService.SendMessage(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
