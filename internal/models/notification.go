package models

import "time"

// Notification is a feed entry. RecipientID nil means broadcast to admins.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Type        NotificationType `gorm:"size:32;not null;index" json:"type"`
	Title       string           `gorm:"size:255" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	RecipientID *uint            `gorm:"index" json:"recipient_id"`
	ActorID     *uint            `json:"actor_id"`
	SiteID      *uint            `json:"site_id"`
	PhaseID     *uint            `json:"phase_id"`
	TaskID      *uint            `json:"task_id"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
