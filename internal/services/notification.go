package services

import (
	"context"
	"time"

	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService persists delivered batches and serves role-filtered feeds.
type NotificationService struct {
	db            *gorm.DB
	adminTypes    []models.NotificationType
	employeeTypes []models.NotificationType
}

func NewNotificationService(db *gorm.DB, cfg *config.NotificationsConfig) *NotificationService {
	defaults := config.DefaultConfig().Notifications
	if cfg == nil {
		cfg = &defaults
	}
	admin := parseFeedTypes(cfg.AdminFeedTypes)
	if len(admin) == 0 {
		admin = parseFeedTypes(defaults.AdminFeedTypes)
	}
	employee := parseFeedTypes(cfg.EmployeeFeedTypes)
	if len(employee) == 0 {
		employee = parseFeedTypes(defaults.EmployeeFeedTypes)
	}
	return &NotificationService{db: db, adminTypes: admin, employeeTypes: employee}
}

func parseFeedTypes(raw []string) []models.NotificationType {
	out := make([]models.NotificationType, 0, len(raw))
	for _, r := range raw {
		t, ok := models.ParseNotificationType(r)
		if !ok {
			logger.Warnf("[Notification] Ignoring unknown feed type %q", r)
			continue
		}
		out = append(out, t)
	}
	return out
}

type NotificationListRequest struct {
	Page       int  `form:"page" binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size" binding:"omitempty,min=1,max=100"`
	UnreadOnly bool `form:"unread_only"`
}

type NotificationListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []models.Notification `json:"items"`
}

// Persist stores a delivered batch. It is the processor behind both the
// sync queue and the asynq worker.
func (s *NotificationService) Persist(ctx context.Context, batch *NotificationBatch) error {
	if len(batch.Notifications) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&batch.Notifications).Error
}

// feed scopes a query to what the actor may see: admins read broadcast rows,
// employees read rows addressed to them.
func (s *NotificationService) feed(ctx context.Context, actor Actor) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Notification{})
	if actor.IsAdmin() {
		return q.Where("recipient_id IS NULL AND type IN ?", s.adminTypes)
	}
	return q.Where("recipient_id = ? AND type IN ?", actor.ID, s.employeeTypes)
}

func (s *NotificationService) List(ctx context.Context, actor Actor, req *NotificationListRequest) (*NotificationListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.feed(ctx, actor)
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Notification
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &NotificationListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	var count int64
	err := s.feed(ctx, actor).Where("is_read = ?", false).Count(&count).Error
	return count, err
}

// MarkRead flags one notification; rows outside the actor's feed are
// reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) error {
	var n models.Notification
	if err := s.feed(ctx, actor).Where("id = ?", id).First(&n).Error; err != nil {
		return lookupErr("notification", err)
	}
	if n.IsRead {
		return nil
	}
	return s.db.WithContext(ctx).Model(&n).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": time.Now(),
	}).Error
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	res := s.feed(ctx, actor).Where("is_read = ?", false).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": time.Now(),
	})
	return res.RowsAffected, res.Error
}
