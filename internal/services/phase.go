package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/metrics"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/gorm"
)

const defaultPhaseRejectReason = "Stage requires further work"

// PhaseService implements the phase lifecycle and delegates ordering to
// the PhaseSequencer.
type PhaseService struct {
	wf        *Workflow
	sequencer *PhaseSequencer
}

func NewPhaseService(wf *Workflow, sequencer *PhaseSequencer) *PhaseService {
	if sequencer == nil {
		sequencer = NewPhaseSequencer()
	}
	return &PhaseService{wf: wf, sequencer: sequencer}
}

type CreatePhaseRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Position    *int       `json:"position"` // nil appends
	Budget      float64    `json:"budget"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type UpdatePhaseRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Budget      *float64   `json:"budget"`
	Status      *string    `json:"status"`
	Position    *int       `json:"position"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type PhaseProgressRequest struct {
	Progress int    `json:"progress" binding:"min=0,max=100"`
	Message  string `json:"message"`
}

type AssignPhaseRequest struct {
	EmployeeID uint `json:"employee_id" binding:"required"`
}

type PhaseDetails struct {
	Phase    models.Phase            `json:"phase"`
	Assignee *models.Employee        `json:"assignee,omitempty"`
	Updates  []models.ProgressUpdate `json:"updates"`
	Messages []models.Message        `json:"messages"`
	Todos    []models.Todo           `json:"todos"`
}

// AddPhase inserts a phase at the requested position; admin only.
func (s *PhaseService) AddPhase(ctx context.Context, actor Actor, siteID uint, req *CreatePhaseRequest) (*models.Phase, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewValidation("phase name is required")
	}

	phase := &models.Phase{
		Name:        name,
		Description: req.Description,
		Budget:      req.Budget,
		Status:      models.StatusNotStarted,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	err := s.wf.Run(ctx, siteLockKey(siteID), func(tx *gorm.DB, out *Outbox) error {
		if _, err := loadSite(tx, siteID, true); err != nil {
			return err
		}
		if req.Position != nil {
			return s.sequencer.Insert(tx, siteID, *req.Position, phase)
		}
		var count int64
		if err := tx.Model(&models.Phase{}).Where("site_id = ?", siteID).Count(&count).Error; err != nil {
			return err
		}
		return s.sequencer.Insert(tx, siteID, int(count)+1, phase)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition("phase", "created")
	return phase, nil
}

// UpdatePhase edits fields and optionally moves the phase. Completion is
// only reachable through Approve.
func (s *PhaseService) UpdatePhase(ctx context.Context, actor Actor, phaseID uint, req *UpdatePhaseRequest) (*models.Phase, error) {
	var status *models.Status
	if req.Status != nil {
		parsed, err := parseWritableStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}

	key := phaseLockKey(phaseID)
	if req.Position != nil {
		var p models.Phase
		if err := s.wf.db.WithContext(ctx).Select("id", "site_id").First(&p, phaseID).Error; err != nil {
			return nil, lookupErr("phase", err)
		}
		key = siteLockKey(p.SiteID)
	}

	var phase *models.Phase
	err := s.wf.Run(ctx, key, func(tx *gorm.DB, out *Outbox) error {
		var err error
		phase, err = loadPhase(tx, phaseID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return response.NewValidation("phase name cannot be empty")
			}
			updates["name"] = name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Budget != nil {
			updates["budget"] = *req.Budget
		}
		if req.StartDate != nil {
			updates["start_date"] = *req.StartDate
		}
		if req.EndDate != nil {
			updates["end_date"] = *req.EndDate
		}
		if status != nil {
			if phase.Status == models.StatusCompleted {
				return response.NewInvalidTransition("phase is already approved")
			}
			updates["status"] = *status
			switch *status {
			case models.StatusNotStarted:
				updates["progress"] = 0
			case models.StatusWaitingForApproval:
				updates["progress"] = 100
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(phase).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Position != nil {
			if err := s.sequencer.Move(tx, phase, *req.Position); err != nil {
				return err
			}
		}
		return tx.First(phase, phase.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

// DeletePhase removes the phase, its tasks and activity; admin only.
func (s *PhaseService) DeletePhase(ctx context.Context, actor Actor, phaseID uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var p models.Phase
	if err := s.wf.db.WithContext(ctx).Select("id", "site_id").First(&p, phaseID).Error; err != nil {
		return lookupErr("phase", err)
	}

	return s.wf.Run(ctx, siteLockKey(p.SiteID), func(tx *gorm.DB, out *Outbox) error {
		if _, err := loadSite(tx, p.SiteID, true); err != nil {
			return err
		}
		phase, err := loadPhase(tx, phaseID)
		if err != nil {
			return err
		}
		return s.sequencer.Remove(tx, phase)
	})
}

// Assign makes the employee the phase's assignee. Tasks under the phase
// report this employee as their single assignee until a later task-level
// assignment, see models.DeriveEmployeeID.
func (s *PhaseService) Assign(ctx context.Context, actor Actor, phaseID, employeeID uint) (*models.Phase, error) {
	var phase *models.Phase
	err := s.wf.Run(ctx, phaseLockKey(phaseID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		phase, err = loadPhase(tx, phaseID)
		if err != nil {
			return err
		}
		emp, err := loadEmployee(tx, employeeID)
		if err != nil {
			return err
		}

		if err := tx.Model(phase).Updates(map[string]interface{}{
			"assigned_to": emp.ID,
			"assigned_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		if err := ensureSiteAssignment(tx, phase.SiteID, emp.ID); err != nil {
			return err
		}

		out.Add(Event{
			Type:       models.NotificationAssignment,
			Audience:   AudienceEmployees,
			Recipients: []uint{emp.ID},
			Title:      "New stage assignment",
			Message:    fmt.Sprintf("You have been assigned to stage \"%s\"", phase.Name),
			ActorID:    actor.idPtr(),
			SiteID:     uintPtr(phase.SiteID),
			PhaseID:    uintPtr(phase.ID),
		})
		return tx.First(phase, phase.ID).Error
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition("phase", "assigned")
	return phase, nil
}

// RecordProgress derives the phase status from progress. The update row is
// skipped for a bare completion (100% with no message).
func (s *PhaseService) RecordProgress(ctx context.Context, actor Actor, phaseID uint, req *PhaseProgressRequest) (*models.Phase, error) {
	if req.Progress < 0 || req.Progress > 100 {
		return nil, response.NewValidation("progress must be between 0 and 100")
	}
	message := strings.TrimSpace(req.Message)

	var phase *models.Phase
	err := s.wf.Run(ctx, phaseLockKey(phaseID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		phase, err = loadPhase(tx, phaseID)
		if err != nil {
			return err
		}
		if phase.Status == models.StatusCompleted {
			return response.NewInvalidTransition("phase is already approved")
		}

		previous := phase.Progress
		if !(req.Progress == 100 && message == "") {
			if err := tx.Create(&models.ProgressUpdate{
				PhaseID:          uintPtr(phase.ID),
				AuthorID:         actor.idPtr(),
				PreviousProgress: previous,
				NewProgress:      req.Progress,
				Message:          message,
			}).Error; err != nil {
				return err
			}
		}

		next := models.StatusFromProgress(req.Progress)
		updates := map[string]interface{}{
			"progress": req.Progress,
			"status":   next,
		}
		if next == models.StatusWaitingForApproval {
			if phase.Status != models.StatusWaitingForApproval {
				updates["completed_by"] = actor.idPtr()
				updates["completed_at"] = time.Now()
			}
		} else {
			updates["completed_by"] = nil
			updates["completed_at"] = nil
		}
		if err := tx.Model(phase).Updates(updates).Error; err != nil {
			return err
		}

		if next == models.StatusWaitingForApproval && phase.Status != models.StatusWaitingForApproval {
			metrics.RecordTransition("phase", "submitted")
		}
		if !actor.IsAdmin() {
			out.Add(Event{
				Type:     models.NotificationTaskUpdate,
				Audience: AudienceAdmins,
				Title:    "Stage progress updated",
				Message:  fmt.Sprintf("Stage \"%s\": %s", phase.Name, progressSummary(previous, req.Progress, message)),
				ActorID:  actor.idPtr(),
				SiteID:   uintPtr(phase.SiteID),
				PhaseID:  uintPtr(phase.ID),
			})
		}
		return tx.First(phase, phase.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

// Complete submits the phase for approval.
func (s *PhaseService) Complete(ctx context.Context, actor Actor, phaseID uint, message string) (*models.Phase, error) {
	return s.RecordProgress(ctx, actor, phaseID, &PhaseProgressRequest{Progress: 100, Message: message})
}

// Approve completes a phase waiting for approval. Unlike task approval it
// does not notify assignees.
func (s *PhaseService) Approve(ctx context.Context, actor Actor, phaseID uint) (*models.Phase, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var phase *models.Phase
	err := s.wf.Run(ctx, phaseLockKey(phaseID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		phase, err = loadPhase(tx, phaseID)
		if err != nil {
			return err
		}
		switch phase.Status {
		case models.StatusCompleted:
			return nil
		case models.StatusWaitingForApproval:
		default:
			return response.NewInvalidTransition(fmt.Sprintf("phase cannot be approved from %s", phase.Status))
		}

		if err := tx.Model(phase).Updates(map[string]interface{}{
			"status":      models.StatusCompleted,
			"progress":    100,
			"approved_by": actor.ID,
			"approved_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		if err := appendSystemMessage(tx, nil, &phase.ID, "Stage approved"); err != nil {
			return err
		}
		metrics.RecordTransition("phase", "approved")
		return tx.First(phase, phase.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

// Reject reopens a phase waiting for approval with progress reset to 0.
func (s *PhaseService) Reject(ctx context.Context, actor Actor, phaseID uint, reason string) (*models.Phase, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultPhaseRejectReason
	}

	var phase *models.Phase
	err := s.wf.Run(ctx, phaseLockKey(phaseID), func(tx *gorm.DB, out *Outbox) error {
		var err error
		phase, err = loadPhase(tx, phaseID)
		if err != nil {
			return err
		}
		if phase.Status != models.StatusWaitingForApproval {
			return response.NewInvalidTransition(fmt.Sprintf("phase cannot be rejected from %s", phase.Status))
		}

		if err := tx.Model(phase).Updates(map[string]interface{}{
			"status":       models.StatusInProgress,
			"progress":     0,
			"completed_by": nil,
			"completed_at": nil,
			"approved_by":  nil,
			"approved_at":  nil,
		}).Error; err != nil {
			return err
		}
		if err := appendSystemMessage(tx, nil, &phase.ID, "Stage rejected: "+reason); err != nil {
			return err
		}
		metrics.RecordTransition("phase", "rejected")
		return tx.First(phase, phase.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

func (s *PhaseService) AddTodo(ctx context.Context, actor Actor, phaseID uint, title string) (*models.Todo, error) {
	return addTodo(ctx, s.wf, actor, nil, &phaseID, title)
}

func (s *PhaseService) ToggleTodo(ctx context.Context, actor Actor, todoID uint) (*models.Todo, error) {
	return toggleTodo(ctx, s.wf, actor, todoID, todoScopePhase)
}

func (s *PhaseService) SendMessage(ctx context.Context, actor Actor, phaseID uint, req *SendMessageRequest) (*models.Message, error) {
	return sendMessage(ctx, s.wf, actor, nil, &phaseID, req)
}

// GetDetails returns the phase with its ordered tasks and activity.
func (s *PhaseService) GetDetails(ctx context.Context, phaseID uint) (*PhaseDetails, error) {
	db := s.wf.db.WithContext(ctx)

	var details PhaseDetails
	if err := db.First(&details.Phase, phaseID).Error; err != nil {
		return nil, lookupErr("phase", err)
	}
	if err := db.Where("phase_id = ?", phaseID).Order("id ASC").Find(&details.Phase.Tasks).Error; err != nil {
		return nil, err
	}
	tasks := make([]*models.Task, len(details.Phase.Tasks))
	for i := range details.Phase.Tasks {
		tasks[i] = &details.Phase.Tasks[i]
	}
	if err := hydrateTasks(db, tasks); err != nil {
		return nil, err
	}

	if details.Phase.AssignedTo != nil {
		var emp models.Employee
		if err := db.First(&emp, *details.Phase.AssignedTo).Error; err == nil {
			details.Assignee = &emp
		}
	}
	if err := db.Where("phase_id = ?", phaseID).Order("created_at ASC, id ASC").Find(&details.Updates).Error; err != nil {
		return nil, err
	}
	if err := db.Where("phase_id = ?", phaseID).Order("created_at ASC, id ASC").Find(&details.Messages).Error; err != nil {
		return nil, err
	}
	if err := db.Where("phase_id = ?", phaseID).Order("id ASC").Find(&details.Todos).Error; err != nil {
		return nil, err
	}
	return &details, nil
}

func ensureSiteAssignment(tx *gorm.DB, siteID, employeeID uint) error {
	var count int64
	if err := tx.Model(&models.SiteAssignment{}).
		Where("site_id = ? AND employee_id = ?", siteID, employeeID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.SiteAssignment{SiteID: siteID, EmployeeID: employeeID, AssignedAt: time.Now()}).Error
}
