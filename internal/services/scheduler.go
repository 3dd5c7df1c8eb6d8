package services

import (
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	configLogRetentionDays = "log_retention_days"
	logCleanupLockName     = "system_log_cleanup"
	logCleanupSchedule     = "30 3 * * *"
)

// MaintenanceScheduler runs periodic housekeeping through cron. Each run
// claims a scheduler_locks row so only one instance does the work.
type MaintenanceScheduler struct {
	db       *gorm.DB
	logs     *SystemLogService
	cron     *cron.Cron
	instance string
}

func NewMaintenanceScheduler(db *gorm.DB) *MaintenanceScheduler {
	host, _ := os.Hostname()
	return &MaintenanceScheduler{
		db:       db,
		logs:     NewSystemLogService(db),
		cron:     cron.New(),
		instance: host + "-" + uuid.NewString()[:8],
	}
}

func (m *MaintenanceScheduler) Start() error {
	if _, err := m.cron.AddFunc(logCleanupSchedule, m.RunLogCleanup); err != nil {
		return err
	}
	m.cron.Start()
	logger.Infof("[Scheduler] Maintenance scheduled (log cleanup: %s)", logCleanupSchedule)
	return nil
}

func (m *MaintenanceScheduler) Stop() {
	<-m.cron.Stop().Done()
}

// RunLogCleanup deletes audit rows past the configured retention.
func (m *MaintenanceScheduler) RunLogCleanup() {
	runKey := time.Now().Format("2006-01-02")
	if !m.tryLock(logCleanupLockName, runKey, 6*time.Hour) {
		logger.Debug().Str("key", runKey).Msg("[Scheduler] Log cleanup already claimed")
		return
	}

	retentionDays := m.logs.GetRetentionDays()
	if retentionDays <= 0 {
		logger.Infof("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := m.logs.CleanupOldLogs(retentionDays)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		LogError("System", "LogCleanup", err.Error(), nil, "", "", map[string]interface{}{"retention_days": retentionDays})
		return
	}
	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, retentionDays)
	}
}

// tryLock claims (name, key). An expired claim may be taken over.
func (m *MaintenanceScheduler) tryLock(name, key string, ttl time.Duration) bool {
	now := time.Now()
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  m.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	err := m.db.Create(&lock).Error
	if err == nil {
		return true
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		logger.Warn().Err(err).Str("lock", name).Msg("[Scheduler] Failed to claim lock")
		return false
	}

	res := m.db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, now).
		Updates(map[string]interface{}{
			"locked_by":  m.instance,
			"locked_at":  now,
			"expires_at": now.Add(ttl),
		})
	return res.Error == nil && res.RowsAffected == 1
}
