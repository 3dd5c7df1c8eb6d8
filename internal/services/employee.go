package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/utils"
	"github.com/sitetrack/backend/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type EmployeeService struct {
	db *gorm.DB
}

func NewEmployeeService(db *gorm.DB) *EmployeeService {
	return &EmployeeService{db: db}
}

type EmployeeListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
	Role     string `form:"role"`
	Status   string `form:"status"`
}

type EmployeeListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.Employee `json:"items"`
}

type CreateEmployeeRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Position string `json:"position"`
}

type UpdateEmployeeRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Position *string `json:"position"`
	Status   *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

func (s *EmployeeService) List(ctx context.Context, req *EmployeeListRequest) (*EmployeeListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Employee{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Role != "" {
		role, ok := models.ParseRole(req.Role)
		if !ok {
			return nil, response.NewValidation("unknown role")
		}
		query = query.Where("role = ?", role)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	query.Count(&total)

	var items []models.Employee
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("id ASC").Offset(offset).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}
	return &EmployeeListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: items}, nil
}

func (s *EmployeeService) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	var emp models.Employee
	if err := s.db.WithContext(ctx).First(&emp, id).Error; err != nil {
		return nil, lookupErr("employee", err)
	}
	return &emp, nil
}

// Create requires name, phone, password and role.
func (s *EmployeeService) Create(ctx context.Context, req *CreateEmployeeRequest) (*models.Employee, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if phone == "" {
		missing = append(missing, "phone")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(req.Role) == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return nil, response.NewValidation("missing required fields: " + strings.Join(missing, ", "))
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, response.NewValidation("role must be Admin or Employee")
	}

	email := normalizeEmail(req.Email)
	if err := s.checkUnique(ctx, 0, phone, email); err != nil {
		return nil, err
	}

	hashed, err := hashEmployeePassword(req.Password)
	if err != nil {
		return nil, err
	}

	emp := &models.Employee{
		Name:     name,
		Phone:    phone,
		Email:    email,
		Password: hashed,
		Role:     role,
		Position: req.Position,
		Status:   models.EmployeeActive,
	}
	if err := s.db.WithContext(ctx).Create(emp).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, response.NewConflict("phone or email already in use")
		}
		return nil, err
	}
	return emp, nil
}

func (s *EmployeeService) Update(ctx context.Context, id uint, req *UpdateEmployeeRequest) (*models.Employee, error) {
	emp, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewValidation("name cannot be empty")
		}
		updates["name"] = name
	}
	phone := ""
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		if phone == "" {
			return nil, response.NewValidation("phone cannot be empty")
		}
		updates["phone"] = phone
	}
	var email *string
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
		updates["email"] = email
	}
	if err := s.checkUnique(ctx, id, phone, email); err != nil {
		return nil, err
	}
	if req.Password != nil && *req.Password != "" {
		hashed, err := hashEmployeePassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hashed
	}
	if req.Role != nil {
		role, ok := models.ParseRole(*req.Role)
		if !ok {
			return nil, response.NewValidation("role must be Admin or Employee")
		}
		updates["role"] = role
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(emp).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, id)
}

// Delete removes the employee together with its assignments.
func (s *EmployeeService) Delete(ctx context.Context, actor Actor, id uint) error {
	if actor.ID == id {
		return response.NewBadRequest("cannot delete yourself")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Employee{}, id).Error; err != nil {
			return lookupErr("employee", err)
		}
		if err := tx.Where("employee_id = ?", id).Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("employee_id = ?", id).Delete(&models.SiteAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Phase{}).Where("assigned_to = ?", id).
			Updates(map[string]interface{}{"assigned_to": nil, "assigned_at": nil}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Employee{}, id).Error
	})
}

func (s *EmployeeService) checkUnique(ctx context.Context, selfID uint, phone string, email *string) error {
	db := s.db.WithContext(ctx)
	if phone != "" {
		var count int64
		db.Model(&models.Employee{}).Where("phone = ? AND id <> ?", phone, selfID).Count(&count)
		if count > 0 {
			return response.NewConflict("phone already in use")
		}
	}
	if email != nil {
		var count int64
		db.Model(&models.Employee{}).Where("email = ? AND id <> ?", *email, selfID).Count(&count)
		if count > 0 {
			return response.NewConflict("email already in use")
		}
	}
	return nil
}

func normalizeEmail(raw string) *string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return nil
	}
	return &email
}

func hashEmployeePassword(password string) (string, error) {
	hashed, err := utils.HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", response.NewValidation("password must be at most 72 bytes")
	}
	return hashed, err
}
