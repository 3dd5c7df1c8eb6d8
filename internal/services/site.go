package services

import (
	"context"
	"strings"
	"time"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/gorm"
)

type SiteService struct {
	db             *gorm.DB
	locker         Locker
	holidays       *HolidayService
	defaultCountry string
}

func NewSiteService(db *gorm.DB, locker Locker, holidays *HolidayService, defaultCountry string) *SiteService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if holidays == nil {
		holidays = NewHolidayService()
	}
	if defaultCountry == "" {
		defaultCountry = "NONE"
	}
	return &SiteService{db: db, locker: locker, holidays: holidays, defaultCountry: strings.ToUpper(defaultCountry)}
}

// HolidayCountries lists the calendars a site schedule may use.
func (s *SiteService) HolidayCountries() []CountryInfo {
	return s.holidays.GetSupportedCountries()
}

type SiteListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
}

type SiteListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Site `json:"items"`
}

type CreateSiteRequest struct {
	Name           string     `json:"name" binding:"required"`
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	DurationDays   *int       `json:"duration_days"`
	HolidayCountry string     `json:"holiday_country"`
	Budget         float64    `json:"budget"`
	Funds          float64    `json:"funds"`
	ClientName     string     `json:"client_name"`
	ClientPhone    string     `json:"client_phone"`
	ClientEmail    string     `json:"client_email"`
}

type UpdateSiteRequest struct {
	Name           *string    `json:"name"`
	Location       *string    `json:"location"`
	Description    *string    `json:"description"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	DurationDays   *int       `json:"duration_days"`
	HolidayCountry *string    `json:"holiday_country"`
	Budget         *float64   `json:"budget"`
	Funds          *float64   `json:"funds"`
	ClientName     *string    `json:"client_name"`
	ClientPhone    *string    `json:"client_phone"`
	ClientEmail    *string    `json:"client_email"`
}

type SiteEmployeesRequest struct {
	EmployeeIDs []uint `json:"employee_ids"`
}

// List returns all sites for admins; employees see sites they are
// assigned to directly or through a task.
func (s *SiteService) List(ctx context.Context, actor Actor, req *SiteListRequest) (*SiteListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	db := s.db.WithContext(ctx)
	query := db.Model(&models.Site{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if !actor.IsAdmin() {
		direct := db.Model(&models.SiteAssignment{}).Select("site_id").Where("employee_id = ?", actor.ID)
		viaTask := db.Model(&models.Task{}).Select("tasks.site_id").
			Joins("JOIN task_assignments ON task_assignments.task_id = tasks.id").
			Where("task_assignments.employee_id = ?", actor.ID)
		query = query.Where("id IN (?) OR id IN (?)", direct, viaTask)
	}

	var total int64
	query.Count(&total)

	var sites []models.Site
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&sites).Error; err != nil {
		return nil, err
	}
	return &SiteListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: sites}, nil
}

// Get returns the site with ordered phases, their tasks and site employees.
func (s *SiteService) Get(ctx context.Context, id uint) (*models.Site, error) {
	db := s.db.WithContext(ctx)

	var site models.Site
	if err := db.Preload("Phases", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("order_num ASC")
	}).Preload("Phases.Tasks", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).First(&site, id).Error; err != nil {
		return nil, lookupErr("site", err)
	}

	var tasks []*models.Task
	for i := range site.Phases {
		for j := range site.Phases[i].Tasks {
			tasks = append(tasks, &site.Phases[i].Tasks[j])
		}
	}
	if err := hydrateTasks(db, tasks); err != nil {
		return nil, err
	}

	employees, err := s.ListEmployees(ctx, id)
	if err != nil {
		return nil, err
	}
	site.Employees = employees
	return &site, nil
}

func (s *SiteService) Create(ctx context.Context, actor Actor, req *CreateSiteRequest) (*models.Site, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewValidation("site name is required")
	}
	country, err := s.resolveCountry(req.HolidayCountry)
	if err != nil {
		return nil, err
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, response.NewValidation("end_date must not be before start_date")
	}

	site := &models.Site{
		Name:           name,
		Location:       req.Location,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		HolidayCountry: country,
		Budget:         req.Budget,
		Funds:          req.Funds,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		ClientEmail:    req.ClientEmail,
		CreatedBy:      actor.ID,
	}
	site.DurationDays = s.duration(site, req.DurationDays)

	if err := s.db.WithContext(ctx).Create(site).Error; err != nil {
		return nil, err
	}
	return site, nil
}

func (s *SiteService) Update(ctx context.Context, actor Actor, id uint, req *UpdateSiteRequest) (*models.Site, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var site models.Site
	if err := s.db.WithContext(ctx).First(&site, id).Error; err != nil {
		return nil, lookupErr("site", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewValidation("site name cannot be empty")
		}
		site.Name = name
	}
	if req.Location != nil {
		site.Location = *req.Location
	}
	if req.Description != nil {
		site.Description = *req.Description
	}
	if req.StartDate != nil {
		site.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		site.EndDate = req.EndDate
	}
	if req.HolidayCountry != nil {
		country, err := s.resolveCountry(*req.HolidayCountry)
		if err != nil {
			return nil, err
		}
		site.HolidayCountry = country
	}
	if req.Budget != nil {
		site.Budget = *req.Budget
	}
	if req.Funds != nil {
		site.Funds = *req.Funds
	}
	if req.ClientName != nil {
		site.ClientName = *req.ClientName
	}
	if req.ClientPhone != nil {
		site.ClientPhone = *req.ClientPhone
	}
	if req.ClientEmail != nil {
		site.ClientEmail = *req.ClientEmail
	}
	if site.StartDate != nil && site.EndDate != nil && site.EndDate.Before(*site.StartDate) {
		return nil, response.NewValidation("end_date must not be before start_date")
	}
	site.DurationDays = s.duration(&site, req.DurationDays)

	if err := s.db.WithContext(ctx).Omit("Phases").Save(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// Delete removes the site with all phases, tasks, assignments and activity.
func (s *SiteService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, siteLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadSite(tx, id, true); err != nil {
			return err
		}

		var taskIDs []uint
		if err := tx.Model(&models.Task{}).Where("site_id = ?", id).Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if err := deleteTaskRows(tx, taskIDs); err != nil {
			return err
		}

		var phaseIDs []uint
		if err := tx.Model(&models.Phase{}).Where("site_id = ?", id).Pluck("id", &phaseIDs).Error; err != nil {
			return err
		}
		for _, phaseID := range phaseIDs {
			if err := deletePhaseActivity(tx, phaseID); err != nil {
				return err
			}
		}
		if err := tx.Where("site_id = ?", id).Delete(&models.Phase{}).Error; err != nil {
			return err
		}
		if err := tx.Where("site_id = ?", id).Delete(&models.SiteAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Site{}, id).Error
	})
}

// AssignEmployees replaces the site's employee set.
func (s *SiteService) AssignEmployees(ctx context.Context, actor Actor, siteID uint, employeeIDs []uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadSite(tx, siteID, false); err != nil {
			return err
		}
		if err := tx.Where("site_id = ?", siteID).Delete(&models.SiteAssignment{}).Error; err != nil {
			return err
		}
		now := time.Now()
		seen := make(map[uint]bool, len(employeeIDs))
		for _, empID := range employeeIDs {
			if seen[empID] {
				continue
			}
			seen[empID] = true
			if _, err := loadEmployee(tx, empID); err != nil {
				return err
			}
			if err := tx.Create(&models.SiteAssignment{SiteID: siteID, EmployeeID: empID, AssignedAt: now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SiteService) ListEmployees(ctx context.Context, siteID uint) ([]models.Employee, error) {
	var employees []models.Employee
	err := s.db.WithContext(ctx).
		Joins("JOIN site_assignments ON site_assignments.employee_id = employees.id").
		Where("site_assignments.site_id = ?", siteID).
		Order("employees.id ASC").
		Find(&employees).Error
	return employees, err
}

func (s *SiteService) resolveCountry(raw string) (string, error) {
	country := strings.ToUpper(strings.TrimSpace(raw))
	if country == "" {
		return s.defaultCountry, nil
	}
	if !s.holidays.Supports(country) {
		return "", response.NewValidation("unsupported holiday_country " + country)
	}
	return country, nil
}

// duration keeps an explicit value and otherwise counts working days
// between the site's start and end dates.
func (s *SiteService) duration(site *models.Site, explicit *int) int {
	if explicit != nil {
		return *explicit
	}
	if site.StartDate == nil || site.EndDate == nil {
		return site.DurationDays
	}
	return s.holidays.WorkingDays(*site.StartDate, *site.EndDate, site.HolidayCountry)
}
