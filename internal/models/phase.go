package models

import "time"

// Phase is an ordered stage of a site. OrderNum is dense 1..N within a site;
// only the phase sequencer writes it.
type Phase struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SiteID      uint       `gorm:"index:idx_phase_site_order;not null" json:"site_id"`
	OrderNum    int        `gorm:"index:idx_phase_site_order;not null" json:"order_num"`
	Name        string     `gorm:"size:200;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Budget      float64    `json:"budget"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	Status      Status     `gorm:"size:32;not null;default:NotStarted;index" json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	AssignedTo  *uint      `gorm:"index" json:"assigned_to"`
	AssignedAt  *time.Time `json:"assigned_at"`
	CompletedBy *uint      `json:"completed_by"`
	CompletedAt *time.Time `json:"completed_at"`
	ApprovedBy  *uint      `json:"approved_by"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Tasks []Task `gorm:"foreignKey:PhaseID" json:"tasks,omitempty"`
}

func (Phase) TableName() string { return "phases" }

// IsSettled reports whether the phase already reached the approval stage,
// so aggregate completion must not flip it again.
func (p *Phase) IsSettled() bool {
	return p.Status == StatusWaitingForApproval || p.Status == StatusCompleted
}
