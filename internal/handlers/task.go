package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/pkg/response"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type SetAssigneesRequest struct {
	EmployeeIDs []uint `json:"employee_ids"`
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.AddTask(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// GET /api/tasks/:id
func (h *TaskHandler) GetDetails(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	details, err := h.taskService.GetDetails(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, details)
}

// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "task deleted"})
}

// SetAssignees replaces the assignee set
// PUT /api/tasks/:id/assignees
func (h *TaskHandler) SetAssignees(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req SetAssigneesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	added, err := h.taskService.SetAssignees(c.Request.Context(), actorFrom(c), id, req.EmployeeIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"added": added})
}

// POST /api/tasks/:id/assignees/:employee_id/toggle
func (h *TaskHandler) ToggleAssignment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}
	employeeID, ok := parseID(c, "employee_id")
	if !ok {
		response.BadRequest(c, "invalid employee id")
		return
	}

	assigned, err := h.taskService.ToggleAssignment(c.Request.Context(), actorFrom(c), id, employeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"assigned": assigned})
}

// POST /api/tasks/:id/updates
func (h *TaskHandler) AddUpdate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req services.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	update, err := h.taskService.RecordProgress(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, update)
}

// POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req CompleteRequest
	_ = c.ShouldBindJSON(&req)

	update, err := h.taskService.Complete(c.Request.Context(), actorFrom(c), id, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, update)
}

// POST /api/tasks/:id/approve
func (h *TaskHandler) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	task, err := h.taskService.Approve(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// POST /api/tasks/:id/reject
func (h *TaskHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req services.RejectRequest
	_ = c.ShouldBindJSON(&req)

	task, err := h.taskService.Reject(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// POST /api/tasks/:id/todos
func (h *TaskHandler) AddTodo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req services.TodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	todo, err := h.taskService.AddTodo(c.Request.Context(), actorFrom(c), id, req.Title)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, todo)
}

// PUT /api/todos/:id/toggle
func (h *TaskHandler) ToggleTodo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid todo id")
		return
	}

	todo, err := h.taskService.ToggleTodo(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, todo)
}

// POST /api/tasks/:id/messages
func (h *TaskHandler) SendMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.taskService.SendMessage(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
