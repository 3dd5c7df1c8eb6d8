package models

import "time"

const (
	EmployeeActive   = "active"
	EmployeeInactive = "inactive"
)

// Employee is anyone who can sign in; Role decides admin capability.
type Employee struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:100;not null" json:"name"`
	Phone     string     `gorm:"uniqueIndex;size:32;not null" json:"phone"`
	Email     *string    `gorm:"uniqueIndex;size:255" json:"email"`
	Password  string     `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role      Role       `gorm:"size:20;not null;default:Employee" json:"role"`
	Position  string     `gorm:"size:100" json:"position"`
	Status    string     `gorm:"size:20;default:active" json:"status"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

func (e *Employee) IsActive() bool { return e.Status != EmployeeInactive }
