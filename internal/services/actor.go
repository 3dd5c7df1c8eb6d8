package services

import (
	"errors"
	"fmt"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   uint
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role.IsAdmin() }

func (a Actor) idPtr() *uint {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

func requireAdmin(a Actor) error {
	if !a.IsAdmin() {
		return response.NewForbidden("admin role required")
	}
	return nil
}

// lookupErr translates a gorm lookup failure into the error taxonomy.
func lookupErr(entity string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound(entity + " not found")
	}
	return fmt.Errorf("load %s: %w", entity, err)
}

func uintPtr(v uint) *uint { return &v }
