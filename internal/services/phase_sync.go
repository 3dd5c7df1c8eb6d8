package services

import (
	"math"
	"time"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/metrics"
	"gorm.io/gorm"
)

const msgAllTasksCompleted = "All tasks completed. Stage is waiting for approval."

// syncPhaseAfterTaskWrite runs after every task write under a phase. It
// re-reads the tasks inside the transaction and rolls their mean progress
// up into an open phase without touching its status. Once every task is
// Completed the phase flips to WaitingForApproval. A phase already waiting
// or completed is left alone, so repeated checks neither duplicate the
// message nor re-notify.
func syncPhaseAfterTaskWrite(tx *gorm.DB, phaseID *uint, actor Actor, out *Outbox) error {
	if phaseID == nil {
		return nil
	}

	phase, err := loadPhase(tx, *phaseID)
	if err != nil {
		return err
	}

	var tasks []models.Task
	if err := tx.Select("id", "status", "progress").Where("phase_id = ?", phase.ID).Find(&tasks).Error; err != nil {
		return err
	}
	if len(tasks) == 0 || phase.IsSettled() {
		return nil
	}

	allCompleted := true
	total := 0
	for _, t := range tasks {
		total += t.Progress
		if t.Status != models.StatusCompleted {
			allCompleted = false
		}
	}

	if !allCompleted {
		avg := int(math.Round(float64(total) / float64(len(tasks))))
		if avg >= 100 {
			avg = 99
		}
		if avg == phase.Progress {
			return nil
		}
		return tx.Model(phase).UpdateColumn("progress", avg).Error
	}

	now := time.Now()
	if err := tx.Model(phase).Updates(map[string]interface{}{
		"status":       models.StatusWaitingForApproval,
		"progress":     100,
		"completed_by": actor.idPtr(),
		"completed_at": now,
	}).Error; err != nil {
		return err
	}
	if err := appendSystemMessage(tx, nil, &phase.ID, msgAllTasksCompleted); err != nil {
		return err
	}

	metrics.RecordTransition("phase", "all_tasks_completed")
	out.Add(Event{
		Type:     models.NotificationStageCompleted,
		Audience: AudienceAdmins,
		Title:    "Stage completed",
		Message:  "All tasks in \"" + phase.Name + "\" are completed and the stage is waiting for approval",
		ActorID:  actor.idPtr(),
		SiteID:   uintPtr(phase.SiteID),
		PhaseID:  uintPtr(phase.ID),
	})
	return nil
}
