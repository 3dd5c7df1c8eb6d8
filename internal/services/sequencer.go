package services

import (
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/metrics"
	"gorm.io/gorm"
)

// PhaseSequencer keeps a site's phase order_num dense (1..N). Every method
// runs inside the caller's transaction while the site lock is held.
type PhaseSequencer struct{}

func NewPhaseSequencer() *PhaseSequencer { return &PhaseSequencer{} }

// Insert places phase at position, clamped to [1, count+1].
func (s *PhaseSequencer) Insert(tx *gorm.DB, siteID uint, position int, phase *models.Phase) error {
	var count int64
	if err := tx.Model(&models.Phase{}).Where("site_id = ?", siteID).Count(&count).Error; err != nil {
		return err
	}
	position = clampPosition(position, int(count)+1)

	if err := tx.Model(&models.Phase{}).
		Where("site_id = ? AND order_num >= ?", siteID, position).
		UpdateColumn("order_num", gorm.Expr("order_num + 1")).Error; err != nil {
		return err
	}

	phase.SiteID = siteID
	phase.OrderNum = position
	if err := tx.Create(phase).Error; err != nil {
		return err
	}

	if err := s.Normalize(tx, siteID); err != nil {
		return err
	}
	metrics.PhaseResequences.WithLabelValues("insert").Inc()
	return tx.Select("order_num").First(phase, phase.ID).Error
}

// Move relocates an existing phase to position, clamped to [1, count].
func (s *PhaseSequencer) Move(tx *gorm.DB, phase *models.Phase, position int) error {
	var phases []models.Phase
	if err := tx.Where("site_id = ?", phase.SiteID).Order("order_num ASC, id ASC").Find(&phases).Error; err != nil {
		return err
	}
	position = clampPosition(position, len(phases))

	ordered := make([]uint, 0, len(phases))
	for _, p := range phases {
		if p.ID != phase.ID {
			ordered = append(ordered, p.ID)
		}
	}
	ordered = append(ordered[:position-1], append([]uint{phase.ID}, ordered[position-1:]...)...)

	if err := writeOrder(tx, ordered, phases); err != nil {
		return err
	}
	phase.OrderNum = position
	metrics.PhaseResequences.WithLabelValues("move").Inc()
	return nil
}

// Remove deletes the phase with its tasks and activity, then closes the gap.
func (s *PhaseSequencer) Remove(tx *gorm.DB, phase *models.Phase) error {
	var taskIDs []uint
	if err := tx.Model(&models.Task{}).Where("phase_id = ?", phase.ID).Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	if err := deleteTaskRows(tx, taskIDs); err != nil {
		return err
	}
	if err := deletePhaseActivity(tx, phase.ID); err != nil {
		return err
	}
	if err := tx.Delete(&models.Phase{}, phase.ID).Error; err != nil {
		return err
	}

	if err := s.Normalize(tx, phase.SiteID); err != nil {
		return err
	}
	metrics.PhaseResequences.WithLabelValues("remove").Inc()
	return nil
}

// Normalize rewrites order_num to 1..N following the current order.
func (s *PhaseSequencer) Normalize(tx *gorm.DB, siteID uint) error {
	var phases []models.Phase
	if err := tx.Select("id", "order_num").Where("site_id = ?", siteID).
		Order("order_num ASC, id ASC").Find(&phases).Error; err != nil {
		return err
	}
	ordered := make([]uint, len(phases))
	for i, p := range phases {
		ordered[i] = p.ID
	}
	return writeOrder(tx, ordered, phases)
}

func writeOrder(tx *gorm.DB, ordered []uint, current []models.Phase) error {
	existing := make(map[uint]int, len(current))
	for _, p := range current {
		existing[p.ID] = p.OrderNum
	}
	for i, id := range ordered {
		if existing[id] == i+1 {
			continue
		}
		if err := tx.Model(&models.Phase{}).Where("id = ?", id).UpdateColumn("order_num", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}

func clampPosition(position, max int) int {
	if position > max {
		position = max
	}
	if position < 1 {
		position = 1
	}
	return position
}

func deleteTaskRows(tx *gorm.DB, taskIDs []uint) error {
	if len(taskIDs) == 0 {
		return nil
	}
	for _, model := range []interface{}{
		&models.TaskAssignment{},
		&models.ProgressUpdate{},
		&models.Message{},
		&models.Todo{},
	} {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", taskIDs).Delete(&models.Task{}).Error
}

func deletePhaseActivity(tx *gorm.DB, phaseID uint) error {
	for _, model := range []interface{}{
		&models.ProgressUpdate{},
		&models.Message{},
		&models.Todo{},
	} {
		if err := tx.Where("phase_id = ?", phaseID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
