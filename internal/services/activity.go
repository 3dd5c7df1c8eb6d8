package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/gorm"
)

type SendMessageRequest struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	MediaURL string `json:"media_url"`
}

type TodoRequest struct {
	Title string `json:"title" binding:"required"`
}

// sendMessage appends a chat entry to a task or phase. Messages from
// non-admins raise CHAT_UPDATE for admins.
func sendMessage(ctx context.Context, wf *Workflow, actor Actor, taskID, phaseID *uint, req *SendMessageRequest) (*models.Message, error) {
	msgType, ok := models.ParseMessageType(req.Type)
	if !ok {
		return nil, response.NewValidation(fmt.Sprintf("unsupported message type %q", req.Type))
	}
	content := strings.TrimSpace(req.Content)
	if msgType == models.MessageText && content == "" {
		return nil, response.NewValidation("message content is required")
	}
	if msgType.IsMedia() && strings.TrimSpace(req.MediaURL) == "" {
		return nil, response.NewValidation("media_url is required for media messages")
	}

	var msg models.Message
	err := wf.Run(ctx, "", func(tx *gorm.DB, out *Outbox) error {
		var siteID uint
		var scopeName string
		resolvedPhase := phaseID
		if taskID != nil {
			var task models.Task
			if err := tx.Select("id", "site_id", "phase_id", "name").First(&task, *taskID).Error; err != nil {
				return lookupErr("task", err)
			}
			siteID, scopeName, resolvedPhase = task.SiteID, "task \""+task.Name+"\"", task.PhaseID
		} else {
			var phase models.Phase
			if err := tx.Select("id", "site_id", "name").First(&phase, *phaseID).Error; err != nil {
				return lookupErr("phase", err)
			}
			siteID, scopeName = phase.SiteID, "stage \""+phase.Name+"\""
		}

		msg = models.Message{
			TaskID:   taskID,
			PhaseID:  phaseID,
			SenderID: actor.idPtr(),
			Type:     msgType,
			Content:  content,
			MediaURL: strings.TrimSpace(req.MediaURL),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		if !actor.IsAdmin() {
			out.Add(Event{
				Type:     models.NotificationChatUpdate,
				Audience: AudienceAdmins,
				Title:    "New message",
				Message:  "New message on " + scopeName,
				ActorID:  actor.idPtr(),
				SiteID:   uintPtr(siteID),
				PhaseID:  resolvedPhase,
				TaskID:   taskID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func addTodo(ctx context.Context, wf *Workflow, actor Actor, taskID, phaseID *uint, title string) (*models.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, response.NewValidation("todo title is required")
	}

	todo := models.Todo{TaskID: taskID, PhaseID: phaseID, Title: title, CreatedBy: actor.idPtr()}
	err := wf.Run(ctx, "", func(tx *gorm.DB, out *Outbox) error {
		if taskID != nil {
			if err := tx.Select("id").First(&models.Task{}, *taskID).Error; err != nil {
				return lookupErr("task", err)
			}
		} else if err := tx.Select("id").First(&models.Phase{}, *phaseID).Error; err != nil {
			return lookupErr("phase", err)
		}
		return tx.Create(&todo).Error
	})
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

type todoScope int

const (
	todoScopeTask todoScope = iota
	todoScopePhase
)

func toggleTodo(ctx context.Context, wf *Workflow, actor Actor, todoID uint, scope todoScope) (*models.Todo, error) {
	var todo models.Todo
	err := wf.Run(ctx, "", func(tx *gorm.DB, out *Outbox) error {
		if err := forUpdate(tx).First(&todo, todoID).Error; err != nil {
			return lookupErr("todo", err)
		}
		if (scope == todoScopeTask && todo.TaskID == nil) || (scope == todoScopePhase && todo.PhaseID == nil) {
			return response.NewNotFound("todo not found")
		}

		updates := map[string]interface{}{"done": !todo.Done}
		if !todo.Done {
			updates["done_by"] = actor.idPtr()
			updates["done_at"] = time.Now()
		} else {
			updates["done_by"] = nil
			updates["done_at"] = nil
		}
		if err := tx.Model(&todo).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&todo, todoID).Error
	})
	if err != nil {
		return nil, err
	}
	return &todo, nil
}
