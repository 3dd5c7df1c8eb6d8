package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/metrics"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultTaskRejectReason = "Task requires further work"

// TaskService implements the task lifecycle: progress, approval, assignees.
type TaskService struct {
	wf *Workflow
}

func NewTaskService(wf *Workflow) *TaskService {
	return &TaskService{wf: wf}
}

type CreateTaskRequest struct {
	SiteID      uint       `json:"site_id"`
	PhaseID     *uint      `json:"phase_id"`
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress" binding:"min=0,max=100"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeIDs []uint     `json:"assignee_ids"`
}

type UpdateTaskRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Amount      *float64   `json:"amount"`
	Status      *string    `json:"status"`
	Progress    *int       `json:"progress" binding:"omitempty,min=0,max=100"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
}

type ProgressRequest struct {
	Progress    int      `json:"progress" binding:"min=0,max=100"`
	Note        string   `json:"note"`
	Attachments []string `json:"attachments"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type TaskDetails struct {
	Task     models.Task             `json:"task"`
	Updates  []models.ProgressUpdate `json:"updates"`
	Messages []models.Message        `json:"messages"`
	Todos    []models.Todo           `json:"todos"`
}

// AddTask creates a task; admin only.
func (s *TaskService) AddTask(ctx context.Context, actor Actor, req *CreateTaskRequest) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, response.NewValidation("task name is required")
	}
	if req.Progress < 0 || req.Progress > 100 {
		return nil, response.NewValidation("progress must be between 0 and 100")
	}

	status := models.StatusFromProgress(req.Progress)
	if req.Status != "" {
		parsed, err := parseWritableStatus(req.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	key := ""
	if req.PhaseID != nil {
		key = phaseLockKey(*req.PhaseID)
	}

	var task models.Task
	err := s.wf.Run(ctx, key, func(tx *gorm.DB, out *Outbox) error {
		siteID := req.SiteID
		if req.PhaseID != nil {
			phase, err := loadPhase(tx, *req.PhaseID)
			if err != nil {
				return err
			}
			if siteID != 0 && siteID != phase.SiteID {
				return response.NewValidation("phase does not belong to site")
			}
			siteID = phase.SiteID
		}
		if siteID == 0 {
			return response.NewValidation("site_id or phase_id is required")
		}
		if _, err := loadSite(tx, siteID, false); err != nil {
			return err
		}

		task = models.Task{
			SiteID:      siteID,
			PhaseID:     req.PhaseID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Amount:      req.Amount,
			Progress:    req.Progress,
			Status:      status,
			StartDate:   req.StartDate,
			DueDate:     req.DueDate,
			CreatedBy:   actor.idPtr(),
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}

		if len(req.AssigneeIDs) > 0 {
			if _, err := replaceAssignees(tx, &task, req.AssigneeIDs, actor, out); err != nil {
				return err
			}
		}
		return syncPhaseAfterTaskWrite(tx, task.PhaseID, actor, out)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition("task", "created")
	return &task, nil
}

// UpdateTask applies a direct edit. Completion is only reachable through
// Approve.
func (s *TaskService) UpdateTask(ctx context.Context, actor Actor, taskID uint, req *UpdateTaskRequest) (*models.Task, error) {
	var status *models.Status
	if req.Status != nil {
		parsed, err := parseWritableStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		return nil, response.NewValidation("progress must be between 0 and 100")
	}

	var task *models.Task
	err := s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		task, err = loadTask(tx, taskID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return response.NewValidation("task name cannot be empty")
			}
			updates["name"] = name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Amount != nil {
			updates["amount"] = *req.Amount
		}
		if req.StartDate != nil {
			updates["start_date"] = *req.StartDate
		}
		if req.DueDate != nil {
			updates["due_date"] = *req.DueDate
		}

		if status != nil || req.Progress != nil {
			if task.Status == models.StatusCompleted {
				return response.NewInvalidTransition("task is already approved")
			}
			next := task.Status
			if req.Progress != nil {
				updates["progress"] = *req.Progress
				next = models.StatusFromProgress(*req.Progress)
			}
			if status != nil {
				next = *status
				if req.Progress == nil {
					switch next {
					case models.StatusNotStarted:
						updates["progress"] = 0
					case models.StatusWaitingForApproval:
						updates["progress"] = 100
					}
				}
			}
			updates["status"] = next
			if next == models.StatusWaitingForApproval {
				if task.Status != models.StatusWaitingForApproval {
					updates["completed_by"] = actor.idPtr()
					updates["completed_at"] = time.Now()
				}
			} else {
				updates["completed_by"] = nil
				updates["completed_at"] = nil
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(task).Updates(updates).Error; err != nil {
				return err
			}
		}
		if err := syncPhaseAfterTaskWrite(tx, task.PhaseID, actor, out); err != nil {
			return err
		}
		return tx.First(task, task.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task and its activity; admin only.
func (s *TaskService) DeleteTask(ctx context.Context, actor Actor, taskID uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		task, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := deleteTaskRows(tx, []uint{task.ID}); err != nil {
			return err
		}
		return syncPhaseAfterTaskWrite(tx, task.PhaseID, actor, out)
	})
}

// SetAssignees replaces the assignee set. Only newly added employees are
// notified.
func (s *TaskService) SetAssignees(ctx context.Context, actor Actor, taskID uint, employeeIDs []uint) ([]uint, error) {
	var added []uint
	err := s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		task, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		added, err = replaceAssignees(tx, task, employeeIDs, actor, out)
		return err
	})
	return added, err
}

// ToggleAssignment adds the employee if absent and removes it otherwise.
// Returns whether the employee is assigned afterwards.
func (s *TaskService) ToggleAssignment(ctx context.Context, actor Actor, taskID, employeeID uint) (bool, error) {
	var assigned bool
	err := s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		task, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if _, err := loadEmployee(tx, employeeID); err != nil {
			return err
		}

		res := tx.Where("task_id = ? AND employee_id = ?", task.ID, employeeID).Delete(&models.TaskAssignment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			assigned = false
			return nil
		}

		if err := tx.Create(&models.TaskAssignment{TaskID: task.ID, EmployeeID: employeeID, AssignedAt: time.Now()}).Error; err != nil {
			return err
		}
		assigned = true
		out.Add(assignmentEvent(task, []uint{employeeID}, actor))
		return nil
	})
	return assigned, err
}

// RecordProgress appends an update and derives the task status from the
// new progress value.
func (s *TaskService) RecordProgress(ctx context.Context, actor Actor, taskID uint, req *ProgressRequest) (*models.ProgressUpdate, error) {
	if req.Progress < 0 || req.Progress > 100 {
		return nil, response.NewValidation("progress must be between 0 and 100")
	}

	var update models.ProgressUpdate
	err := s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		task, err := loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.Status == models.StatusCompleted {
			return response.NewInvalidTransition("task is already approved")
		}

		previousStatus := task.Status
		update = models.ProgressUpdate{
			TaskID:           uintPtr(task.ID),
			AuthorID:         actor.idPtr(),
			PreviousProgress: task.Progress,
			NewProgress:      req.Progress,
			Message:          req.Note,
		}
		if len(req.Attachments) > 0 {
			raw, err := json.Marshal(req.Attachments)
			if err != nil {
				return err
			}
			update.Attachments = datatypes.JSON(raw)
		}
		if err := tx.Create(&update).Error; err != nil {
			return err
		}

		next := models.StatusFromProgress(req.Progress)
		updates := map[string]interface{}{
			"progress": req.Progress,
			"status":   next,
		}
		if next == models.StatusWaitingForApproval {
			updates["completed_by"] = actor.idPtr()
			updates["completed_at"] = time.Now()
		} else {
			updates["completed_by"] = nil
			updates["completed_at"] = nil
		}
		if err := tx.Model(task).Updates(updates).Error; err != nil {
			return err
		}

		summary := progressSummary(update.PreviousProgress, req.Progress, req.Note)
		if err := appendSystemMessage(tx, &task.ID, nil, summary); err != nil {
			return err
		}
		if task.PhaseID != nil {
			if err := appendSystemMessage(tx, nil, task.PhaseID, fmt.Sprintf("Task \"%s\": %s", task.Name, summary)); err != nil {
				return err
			}
		}

		switch {
		case next == models.StatusWaitingForApproval && previousStatus != models.StatusWaitingForApproval:
			metrics.RecordTransition("task", "submitted")
			out.Add(Event{
				Type:     models.NotificationTaskSubmitted,
				Audience: AudienceAdmins,
				Title:    "Task submitted for approval",
				Message:  fmt.Sprintf("Task \"%s\" is waiting for approval", task.Name),
				ActorID:  actor.idPtr(),
				SiteID:   uintPtr(task.SiteID),
				PhaseID:  task.PhaseID,
				TaskID:   uintPtr(task.ID),
			})
		case !actor.IsAdmin():
			out.Add(Event{
				Type:     models.NotificationTaskUpdate,
				Audience: AudienceAdmins,
				Title:    "Task progress updated",
				Message:  fmt.Sprintf("Task \"%s\": %s", task.Name, summary),
				ActorID:  actor.idPtr(),
				SiteID:   uintPtr(task.SiteID),
				PhaseID:  task.PhaseID,
				TaskID:   uintPtr(task.ID),
			})
		}

		return syncPhaseAfterTaskWrite(tx, task.PhaseID, actor, out)
	})
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// Complete submits the task for approval.
func (s *TaskService) Complete(ctx context.Context, actor Actor, taskID uint, note string) (*models.ProgressUpdate, error) {
	return s.RecordProgress(ctx, actor, taskID, &ProgressRequest{Progress: 100, Note: note})
}

// Approve moves a submitted task to Completed. Approving a task that is
// already Completed succeeds without side effects.
func (s *TaskService) Approve(ctx context.Context, actor Actor, taskID uint) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var task *models.Task
	err := s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		task, err = loadTask(tx, taskID)
		if err != nil {
			return err
		}
		switch task.Status {
		case models.StatusCompleted:
			return nil
		case models.StatusWaitingForApproval:
		default:
			return response.NewInvalidTransition(fmt.Sprintf("task cannot be approved from %s", task.Status))
		}

		now := time.Now()
		if err := tx.Model(task).Updates(map[string]interface{}{
			"status":      models.StatusCompleted,
			"progress":    100,
			"approved_by": actor.ID,
			"approved_at": now,
		}).Error; err != nil {
			return err
		}
		if err := appendSystemMessage(tx, &task.ID, nil, "Task approved"); err != nil {
			return err
		}

		assignees, err := assigneeIDs(tx, task.ID)
		if err != nil {
			return err
		}
		metrics.RecordTransition("task", "approved")
		out.Add(Event{
			Type:       models.NotificationTaskApproved,
			Audience:   AudienceEmployees,
			Recipients: assignees,
			Title:      "Task approved",
			Message:    fmt.Sprintf("Task \"%s\" has been approved", task.Name),
			ActorID:    actor.idPtr(),
			SiteID:     uintPtr(task.SiteID),
			PhaseID:    task.PhaseID,
			TaskID:     uintPtr(task.ID),
		})

		if err := syncPhaseAfterTaskWrite(tx, task.PhaseID, actor, out); err != nil {
			return err
		}
		return tx.First(task, task.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Reject sends a submitted task back to InProgress at 99%.
func (s *TaskService) Reject(ctx context.Context, actor Actor, taskID uint, reason string) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultTaskRejectReason
	}

	var task *models.Task
	err := s.wf.Run(ctx, s.wf.taskScopeKey(ctx, taskID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		task, err = loadTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.StatusWaitingForApproval {
			return response.NewInvalidTransition(fmt.Sprintf("task cannot be rejected from %s", task.Status))
		}

		if err := tx.Model(task).Updates(map[string]interface{}{
			"status":       models.StatusInProgress,
			"progress":     99,
			"completed_by": nil,
			"completed_at": nil,
			"approved_by":  nil,
			"approved_at":  nil,
		}).Error; err != nil {
			return err
		}
		if err := appendSystemMessage(tx, &task.ID, nil, "Task rejected: "+reason); err != nil {
			return err
		}

		assignees, err := assigneeIDs(tx, task.ID)
		if err != nil {
			return err
		}
		metrics.RecordTransition("task", "rejected")
		out.Add(Event{
			Type:       models.NotificationTaskRejected,
			Audience:   AudienceEmployees,
			Recipients: assignees,
			Title:      "Task rejected",
			Message:    fmt.Sprintf("Task \"%s\" was rejected: %s", task.Name, reason),
			ActorID:    actor.idPtr(),
			SiteID:     uintPtr(task.SiteID),
			PhaseID:    task.PhaseID,
			TaskID:     uintPtr(task.ID),
		})

		if err := syncPhaseAfterTaskWrite(tx, task.PhaseID, actor, out); err != nil {
			return err
		}
		return tx.First(task, task.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) AddTodo(ctx context.Context, actor Actor, taskID uint, title string) (*models.Todo, error) {
	return addTodo(ctx, s.wf, actor, &taskID, nil, title)
}

func (s *TaskService) SendMessage(ctx context.Context, actor Actor, taskID uint, req *SendMessageRequest) (*models.Message, error) {
	return sendMessage(ctx, s.wf, actor, &taskID, nil, req)
}

// GetDetails returns the task with assignees, the derived single assignee
// and its activity.
func (s *TaskService) GetDetails(ctx context.Context, taskID uint) (*TaskDetails, error) {
	db := s.wf.db.WithContext(ctx)

	var details TaskDetails
	if err := db.First(&details.Task, taskID).Error; err != nil {
		return nil, lookupErr("task", err)
	}
	if err := hydrateTasks(db, []*models.Task{&details.Task}); err != nil {
		return nil, err
	}
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&details.Updates).Error; err != nil {
		return nil, err
	}
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&details.Messages).Error; err != nil {
		return nil, err
	}
	if err := db.Where("task_id = ?", taskID).Order("id ASC").Find(&details.Todos).Error; err != nil {
		return nil, err
	}
	return &details, nil
}

// parseWritableStatus rejects Completed: completion only flows through
// approval.
func parseWritableStatus(raw string) (models.Status, error) {
	status, ok := models.ParseStatus(raw)
	if !ok {
		return "", response.NewValidation(fmt.Sprintf("unknown status %q", raw))
	}
	if status == models.StatusCompleted {
		return "", response.NewForbidden("must use approval endpoint")
	}
	return status, nil
}

func progressSummary(prev, next int, note string) string {
	summary := fmt.Sprintf("Progress updated from %d%% to %d%%", prev, next)
	if note = strings.TrimSpace(note); note != "" {
		summary += ": " + note
	}
	return summary
}

func assigneeIDs(tx *gorm.DB, taskID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.TaskAssignment{}).Where("task_id = ?", taskID).Order("id ASC").Pluck("employee_id", &ids).Error
	return ids, err
}

// replaceAssignees deletes the whole set and inserts the new one, emitting
// ASSIGNMENT only for employees that were not assigned before.
func replaceAssignees(tx *gorm.DB, task *models.Task, employeeIDs []uint, actor Actor, out *Outbox) ([]uint, error) {
	wanted := make([]uint, 0, len(employeeIDs))
	seen := make(map[uint]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}

	if len(wanted) > 0 {
		var found int64
		if err := tx.Model(&models.Employee{}).Where("id IN ?", wanted).Count(&found).Error; err != nil {
			return nil, err
		}
		if int(found) != len(wanted) {
			return nil, response.NewNotFound("employee not found")
		}
	}

	previous, err := assigneeIDs(tx, task.ID)
	if err != nil {
		return nil, err
	}
	before := make(map[uint]bool, len(previous))
	for _, id := range previous {
		before[id] = true
	}

	if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskAssignment{}).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	var added []uint
	for _, id := range wanted {
		if err := tx.Create(&models.TaskAssignment{TaskID: task.ID, EmployeeID: id, AssignedAt: now}).Error; err != nil {
			return nil, err
		}
		if !before[id] {
			added = append(added, id)
		}
	}

	if len(added) > 0 {
		out.Add(assignmentEvent(task, added, actor))
	}
	return added, nil
}

func assignmentEvent(task *models.Task, recipients []uint, actor Actor) Event {
	return Event{
		Type:       models.NotificationAssignment,
		Audience:   AudienceEmployees,
		Recipients: recipients,
		Title:      "New task assignment",
		Message:    fmt.Sprintf("You have been assigned to task \"%s\"", task.Name),
		ActorID:    actor.idPtr(),
		SiteID:     uintPtr(task.SiteID),
		PhaseID:    task.PhaseID,
		TaskID:     uintPtr(task.ID),
	}
}

// hydrateTasks fills Assignees and the derived EmployeeID.
func hydrateTasks(db *gorm.DB, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	taskIDs := make([]uint, len(tasks))
	phaseIDs := make([]uint, 0, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
		if t.PhaseID != nil {
			phaseIDs = append(phaseIDs, *t.PhaseID)
		}
	}

	var assignments []models.TaskAssignment
	if err := db.Where("task_id IN ?", taskIDs).Order("id ASC").Find(&assignments).Error; err != nil {
		return err
	}
	byTask := make(map[uint][]models.TaskAssignment)
	employeeIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		byTask[a.TaskID] = append(byTask[a.TaskID], a)
		employeeIDs = append(employeeIDs, a.EmployeeID)
	}

	employees := make(map[uint]models.Employee)
	if len(employeeIDs) > 0 {
		var rows []models.Employee
		if err := db.Where("id IN ?", employeeIDs).Find(&rows).Error; err != nil {
			return err
		}
		for _, e := range rows {
			employees[e.ID] = e
		}
	}

	phases := make(map[uint]*models.Phase)
	if len(phaseIDs) > 0 {
		var rows []models.Phase
		if err := db.Select("id", "assigned_to", "assigned_at").Where("id IN ?", phaseIDs).Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			phases[rows[i].ID] = &rows[i]
		}
	}

	for _, t := range tasks {
		t.Assignees = make([]models.Employee, 0, len(byTask[t.ID]))
		for _, a := range byTask[t.ID] {
			if e, ok := employees[a.EmployeeID]; ok {
				t.Assignees = append(t.Assignees, e)
			}
		}
		var phase *models.Phase
		if t.PhaseID != nil {
			phase = phases[*t.PhaseID]
		}
		t.EmployeeID = models.DeriveEmployeeID(phase, byTask[t.ID])
	}
	return nil
}

func (s *TaskService) ToggleTodo(ctx context.Context, actor Actor, todoID uint) (*models.Todo, error) {
	return toggleTodo(ctx, s.wf, actor, todoID, todoScopeTask)
}
