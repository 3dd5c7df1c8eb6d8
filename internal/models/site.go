package models

import "time"

// Site is a construction site; its phases are kept densely ordered 1..N.
type Site struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"size:200;not null" json:"name"`
	Location       string     `gorm:"size:500" json:"location"`
	Description    string     `gorm:"type:text" json:"description"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	DurationDays   int        `json:"duration_days"`                  // working days between start and end
	HolidayCountry string     `gorm:"size:10" json:"holiday_country"` // calendar used for DurationDays
	Budget         float64    `json:"budget"`
	Funds          float64    `json:"funds"`
	ClientName     string     `gorm:"size:200" json:"client_name"`
	ClientPhone    string     `gorm:"size:32" json:"client_phone"`
	ClientEmail    string     `gorm:"size:255" json:"client_email"`
	CreatedBy      uint       `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Phases    []Phase    `gorm:"foreignKey:SiteID" json:"phases,omitempty"`
	Employees []Employee `gorm:"-" json:"employees,omitempty"`
}

// SiteAssignment links employees to the sites they work on.
type SiteAssignment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SiteID     uint      `gorm:"uniqueIndex:idx_site_employee;not null" json:"site_id"`
	EmployeeID uint      `gorm:"uniqueIndex:idx_site_employee;not null;index" json:"employee_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (Site) TableName() string           { return "sites" }
func (SiteAssignment) TableName() string { return "site_assignments" }
