package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SchemaMigration records an applied migration version.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false" json:"version"`
	Name      string    `gorm:"size:200" json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

type migration struct {
	version int
	name    string
	up      func(tx *gorm.DB) error
}

// migrations must stay ordered with sequential versions starting from 1.
var migrations = []migration{
	{
		version: 1,
		name:    "create core tables",
		up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&v1Employee{},
				&v1Site{},
				&v1SiteAssignment{},
				&v1Phase{},
				&v1Task{},
				&v1TaskAssignment{},
				&v1ProgressUpdate{},
				&v1Message{},
				&v1Todo{},
				&v1Notification{},
			)
		},
	},
	{
		version: 2,
		name:    "create system tables",
		up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&v2SystemLog{}, &v2SystemConfig{}, &v2SchedulerLock{})
		},
	},
	{
		version: 3,
		name:    "canonicalize lifecycle status values",
		up: func(tx *gorm.DB) error {
			for _, table := range []string{"phases", "tasks"} {
				if err := canonicalizeStatuses(tx, table); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

func canonicalizeStatuses(tx *gorm.DB, table string) error {
	var raw []string
	if err := tx.Table(table).Distinct("status").Pluck("status", &raw).Error; err != nil {
		return err
	}
	for _, value := range raw {
		status, ok := ParseStatus(value)
		if !ok || string(status) == value {
			continue
		}
		if err := tx.Table(table).Where("status = ?", value).Update("status", string(status)).Error; err != nil {
			return fmt.Errorf("canonicalize %s.status %q: %w", table, value, err)
		}
	}
	return nil
}

// Migrate applies every pending migration, each in its own transaction.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return err
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: m.version, Name: m.name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// PendingMigrations lists versions not yet applied.
func PendingMigrations(db *gorm.DB) ([]int, error) {
	if !db.Migrator().HasTable(&SchemaMigration{}) {
		pending := make([]int, 0, len(migrations))
		for _, m := range migrations {
			pending = append(pending, m.version)
		}
		return pending, nil
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}
	var pending []int
	for _, m := range migrations {
		if !applied[m.version] {
			pending = append(pending, m.version)
		}
	}
	return pending, nil
}

func appliedVersions(db *gorm.DB) (map[int]bool, error) {
	var rows []SchemaMigration
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(rows))
	for _, r := range rows {
		applied[r.Version] = true
	}
	return applied, nil
}
