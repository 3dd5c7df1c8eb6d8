package services

import (
	"errors"
	"strings"
	"time"

	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/utils"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token    string           `json:"token"`
	ExpireAt time.Time        `json:"expire_at"`
	Employee *models.Employee `json:"employee"`
}

// Login checks phone + password and issues a JWT.
func (s *AuthService) Login(req *LoginRequest) (*LoginResult, error) {
	var emp models.Employee
	if err := s.db.Where("phone = ?", strings.TrimSpace(req.Phone)).First(&emp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid phone or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(req.Password, emp.Password) {
		return nil, response.NewUnauthorized("invalid phone or password")
	}
	if !emp.IsActive() {
		return nil, response.NewForbidden("employee is disabled")
	}

	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(emp.ID, emp.Phone, string(emp.Role), hours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.db.Model(&emp).UpdateColumn("last_login", now)
	emp.LastLogin = &now

	return &LoginResult{
		Token:    token,
		ExpireAt: now.Add(time.Duration(hours) * time.Hour),
		Employee: &emp,
	}, nil
}

func (s *AuthService) GetCurrentUser(employeeID uint) (*models.Employee, error) {
	var emp models.Employee
	if err := s.db.First(&emp, employeeID).Error; err != nil {
		return nil, lookupErr("employee", err)
	}
	return &emp, nil
}
