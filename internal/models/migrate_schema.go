package models

import (
	"time"

	"gorm.io/datatypes"
)

// Frozen table shapes for the early migrations. Live structs may grow; a
// change to them needs a new migration version, never an edit here.

type v1Employee struct {
	ID        uint       `gorm:"primaryKey"`
	Name      string     `gorm:"size:100;not null"`
	Phone     string     `gorm:"uniqueIndex;size:32;not null"`
	Email     *string    `gorm:"uniqueIndex;size:255"`
	Password  string     `gorm:"size:255;not null"`
	Role      string     `gorm:"size:20;not null;default:Employee"`
	Position  string     `gorm:"size:100"`
	Status    string     `gorm:"size:20;default:active"`
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type v1Site struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:200;not null"`
	Location       string `gorm:"size:500"`
	Description    string `gorm:"type:text"`
	StartDate      *time.Time
	EndDate        *time.Time
	DurationDays   int
	HolidayCountry string `gorm:"size:10"`
	Budget         float64
	Funds          float64
	ClientName     string `gorm:"size:200"`
	ClientPhone    string `gorm:"size:32"`
	ClientEmail    string `gorm:"size:255"`
	CreatedBy      uint
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type v1SiteAssignment struct {
	ID         uint `gorm:"primaryKey"`
	SiteID     uint `gorm:"uniqueIndex:idx_site_employee;not null"`
	EmployeeID uint `gorm:"uniqueIndex:idx_site_employee;not null;index"`
	AssignedAt time.Time
}

type v1Phase struct {
	ID          uint   `gorm:"primaryKey"`
	SiteID      uint   `gorm:"index:idx_phase_site_order;not null"`
	OrderNum    int    `gorm:"index:idx_phase_site_order;not null"`
	Name        string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	Budget      float64
	Progress    int    `gorm:"not null;default:0"`
	Status      string `gorm:"size:32;not null;default:NotStarted;index"`
	StartDate   *time.Time
	EndDate     *time.Time
	AssignedTo  *uint `gorm:"index"`
	AssignedAt  *time.Time
	CompletedBy *uint
	CompletedAt *time.Time
	ApprovedBy  *uint
	ApprovedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type v1Task struct {
	ID          uint   `gorm:"primaryKey"`
	SiteID      uint   `gorm:"index;not null"`
	PhaseID     *uint  `gorm:"index"`
	Name        string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	Amount      float64
	Progress    int    `gorm:"not null;default:0"`
	Status      string `gorm:"size:32;not null;default:NotStarted;index"`
	StartDate   *time.Time
	DueDate     *time.Time
	CreatedBy   *uint
	CompletedBy *uint
	CompletedAt *time.Time
	ApprovedBy  *uint
	ApprovedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type v1TaskAssignment struct {
	ID         uint `gorm:"primaryKey"`
	TaskID     uint `gorm:"uniqueIndex:idx_task_employee;not null"`
	EmployeeID uint `gorm:"uniqueIndex:idx_task_employee;not null;index"`
	AssignedAt time.Time
}

type v1ProgressUpdate struct {
	ID               uint  `gorm:"primaryKey"`
	TaskID           *uint `gorm:"index"`
	PhaseID          *uint `gorm:"index"`
	AuthorID         *uint
	PreviousProgress int
	NewProgress      int
	Message          string `gorm:"type:text"`
	Attachments      datatypes.JSON
	CreatedAt        time.Time `gorm:"index"`
}

type v1Message struct {
	ID        uint  `gorm:"primaryKey"`
	TaskID    *uint `gorm:"index"`
	PhaseID   *uint `gorm:"index"`
	SenderID  *uint
	Type      string    `gorm:"size:20;not null;default:text"`
	Content   string    `gorm:"type:text"`
	MediaURL  string    `gorm:"size:1000"`
	CreatedAt time.Time `gorm:"index"`
}

type v1Todo struct {
	ID        uint   `gorm:"primaryKey"`
	TaskID    *uint  `gorm:"index"`
	PhaseID   *uint  `gorm:"index"`
	Title     string `gorm:"size:500;not null"`
	Done      bool   `gorm:"default:false"`
	DoneBy    *uint
	DoneAt    *time.Time
	CreatedBy *uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

type v1Notification struct {
	ID          uint   `gorm:"primaryKey"`
	Type        string `gorm:"size:32;not null;index"`
	Title       string `gorm:"size:255"`
	Message     string `gorm:"type:text"`
	RecipientID *uint  `gorm:"index"`
	ActorID     *uint
	SiteID      *uint
	PhaseID     *uint
	TaskID      *uint
	IsRead      bool `gorm:"default:false;index"`
	ReadAt      *time.Time
	CreatedAt   time.Time `gorm:"index"`
}

func (v1Employee) TableName() string       { return "employees" }
func (v1Site) TableName() string           { return "sites" }
func (v1SiteAssignment) TableName() string { return "site_assignments" }
func (v1Phase) TableName() string          { return "phases" }
func (v1Task) TableName() string           { return "tasks" }
func (v1TaskAssignment) TableName() string { return "task_assignments" }
func (v1ProgressUpdate) TableName() string { return "progress_updates" }
func (v1Message) TableName() string        { return "messages" }
func (v1Todo) TableName() string           { return "todos" }
func (v1Notification) TableName() string   { return "notifications" }

type v2SystemLog struct {
	ID        uint   `gorm:"primaryKey"`
	Level     string `gorm:"size:20;index"`
	Module    string `gorm:"size:100;index"`
	Action    string `gorm:"size:200;index"`
	Message   string `gorm:"type:text"`
	UserID    *uint
	IP        string    `gorm:"size:50"`
	UserAgent string    `gorm:"size:500"`
	RequestID string    `gorm:"size:64;index"`
	Extra     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

type v2SystemConfig struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"column:config_key;uniqueIndex;size:100;not null"`
	Value     string `gorm:"type:text"`
	Type      string `gorm:"size:20;default:string"`
	Group     string `gorm:"column:config_group;size:50;index"`
	Label     string `gorm:"size:200"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type v2SchedulerLock struct {
	ID        uint   `gorm:"primaryKey"`
	LockName  string `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null"`
	LockKey   string `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null"`
	LockedBy  string `gorm:"size:100"`
	LockedAt  time.Time
	ExpiresAt time.Time `gorm:"index"`
}

func (v2SystemLog) TableName() string     { return "system_logs" }
func (v2SystemConfig) TableName() string  { return "system_configs" }
func (v2SchedulerLock) TableName() string { return "scheduler_locks" }
