package services

import (
	"context"

	"github.com/sitetrack/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Workflow is the shared runtime of the lifecycle services: store, scoped
// locks and post-commit notification dispatch.
type Workflow struct {
	db      *gorm.DB
	locker  Locker
	emitter *Emitter
}

func NewWorkflow(db *gorm.DB, locker Locker, emitter *Emitter) *Workflow {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Workflow{db: db, locker: locker, emitter: emitter}
}

// Run executes fn in one transaction while holding the lock for key.
// Events collected in the outbox are dispatched only after commit.
func (w *Workflow) Run(ctx context.Context, key string, fn func(tx *gorm.DB, out *Outbox) error) error {
	if key != "" {
		unlock, err := w.locker.Lock(ctx, key)
		if err != nil {
			return err
		}
		defer unlock()
	}

	var out Outbox
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, &out)
	})
	if err != nil {
		return err
	}

	w.emitter.Dispatch(ctx, out.Events())
	return nil
}

// forUpdate adds a row lock where the dialect supports it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if models.SupportsRowLocking(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func loadSite(tx *gorm.DB, id uint, lock bool) (*models.Site, error) {
	q := tx
	if lock {
		q = forUpdate(tx)
	}
	var site models.Site
	if err := q.First(&site, id).Error; err != nil {
		return nil, lookupErr("site", err)
	}
	return &site, nil
}

func loadPhase(tx *gorm.DB, id uint) (*models.Phase, error) {
	var phase models.Phase
	if err := forUpdate(tx).First(&phase, id).Error; err != nil {
		return nil, lookupErr("phase", err)
	}
	return &phase, nil
}

func loadTask(tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	if err := forUpdate(tx).First(&task, id).Error; err != nil {
		return nil, lookupErr("task", err)
	}
	return &task, nil
}

func loadEmployee(tx *gorm.DB, id uint) (*models.Employee, error) {
	var emp models.Employee
	if err := tx.First(&emp, id).Error; err != nil {
		return nil, lookupErr("employee", err)
	}
	return &emp, nil
}

// taskScopeKey locks the parent phase when there is one, so sibling task
// writes observe each other before the aggregate completion check.
func (w *Workflow) taskScopeKey(ctx context.Context, taskID uint) string {
	var task models.Task
	if err := w.db.WithContext(ctx).Select("id", "phase_id").First(&task, taskID).Error; err == nil && task.PhaseID != nil {
		return phaseLockKey(*task.PhaseID)
	}
	return taskLockKey(taskID)
}

func appendSystemMessage(tx *gorm.DB, taskID, phaseID *uint, content string) error {
	return tx.Create(&models.Message{
		TaskID:  taskID,
		PhaseID: phaseID,
		Type:    models.MessageSystem,
		Content: content,
	}).Error
}
