package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressUpdate is an append-only progress log entry. Exactly one of
// TaskID and PhaseID is set.
type ProgressUpdate struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TaskID           *uint          `gorm:"index" json:"task_id,omitempty"`
	PhaseID          *uint          `gorm:"index" json:"phase_id,omitempty"`
	AuthorID         *uint          `json:"author_id"`
	PreviousProgress int            `json:"previous_progress"`
	NewProgress      int            `json:"new_progress"`
	Message          string         `gorm:"type:text" json:"message"`
	Attachments      datatypes.JSON `json:"attachments,omitempty"` // list of media urls
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

// Message is a chat entry on a task or a phase.
type Message struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	TaskID    *uint       `gorm:"index" json:"task_id,omitempty"`
	PhaseID   *uint       `gorm:"index" json:"phase_id,omitempty"`
	SenderID  *uint       `json:"sender_id"` // nil for system messages
	Type      MessageType `gorm:"size:20;not null;default:text" json:"type"`
	Content   string      `gorm:"type:text" json:"content"`
	MediaURL  string      `gorm:"size:1000" json:"media_url,omitempty"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

// Todo is a checklist item on a task or a phase.
type Todo struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TaskID    *uint      `gorm:"index" json:"task_id,omitempty"`
	PhaseID   *uint      `gorm:"index" json:"phase_id,omitempty"`
	Title     string     `gorm:"size:500;not null" json:"title"`
	Done      bool       `gorm:"default:false" json:"done"`
	DoneBy    *uint      `json:"done_by"`
	DoneAt    *time.Time `json:"done_at"`
	CreatedBy *uint      `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (ProgressUpdate) TableName() string { return "progress_updates" }
func (Message) TableName() string        { return "messages" }
func (Todo) TableName() string           { return "todos" }
