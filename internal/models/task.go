package models

import (
	"sort"
	"time"
)

// Task is a unit of work, usually inside a phase.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SiteID      uint       `gorm:"index;not null" json:"site_id"`
	PhaseID     *uint      `gorm:"index" json:"phase_id"`
	Name        string     `gorm:"size:200;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Amount      float64    `json:"amount"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	Status      Status     `gorm:"size:32;not null;default:NotStarted;index" json:"status"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
	CreatedBy   *uint      `json:"created_by"`
	CompletedBy *uint      `json:"completed_by"`
	CompletedAt *time.Time `json:"completed_at"`
	ApprovedBy  *uint      `json:"approved_by"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// EmployeeID is the single-assignee view kept for older clients.
	// It is derived on read, see DeriveEmployeeID.
	EmployeeID *uint      `gorm:"-" json:"employee_id"`
	Assignees  []Employee `gorm:"-" json:"assignees"`
}

// TaskAssignment is one row of a task's assignee set.
type TaskAssignment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TaskID     uint      `gorm:"uniqueIndex:idx_task_employee;not null" json:"task_id"`
	EmployeeID uint      `gorm:"uniqueIndex:idx_task_employee;not null;index" json:"employee_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (Task) TableName() string           { return "tasks" }
func (TaskAssignment) TableName() string { return "task_assignments" }

// DeriveEmployeeID computes the legacy single assignee. A phase-level
// assignment made after the latest task assignment wins; otherwise the
// earliest task assignee is reported.
func DeriveEmployeeID(phase *Phase, assignments []TaskAssignment) *uint {
	if len(assignments) == 0 {
		if phase != nil && phase.AssignedTo != nil {
			id := *phase.AssignedTo
			return &id
		}
		return nil
	}

	sorted := make([]TaskAssignment, len(assignments))
	copy(sorted, assignments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	if phase != nil && phase.AssignedTo != nil && phase.AssignedAt != nil {
		latest := sorted[0].AssignedAt
		for _, a := range sorted[1:] {
			if a.AssignedAt.After(latest) {
				latest = a.AssignedAt
			}
		}
		if phase.AssignedAt.After(latest) {
			id := *phase.AssignedTo
			return &id
		}
	}

	id := sorted[0].EmployeeID
	return &id
}
