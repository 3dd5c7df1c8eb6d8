package models

import (
	"fmt"

	"github.com/sitetrack/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg.Driver, cfg.DSN, logger.Warn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects without touching the package-level handle. Tests use it
// with an in-memory sqlite DSN.
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY
		// between concurrent transactions.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}

// SupportsRowLocking reports whether SELECT ... FOR UPDATE is available.
func SupportsRowLocking(db *gorm.DB) bool {
	return db.Dialector.Name() != "sqlite"
}

// SeedDefaultData creates the bootstrap admin and default system configs.
func SeedDefaultData(db *gorm.DB, admin config.AdminConfig, hash func(string) (string, error)) error {
	var adminCount int64
	if err := db.Model(&Employee{}).Where("role = ?", RoleAdmin).Count(&adminCount).Error; err != nil {
		return err
	}
	if adminCount == 0 && admin.Phone != "" {
		hashed, err := hash(admin.Password)
		if err != nil {
			return err
		}
		if err := db.Create(&Employee{
			Name:     admin.Name,
			Phone:    admin.Phone,
			Password: hashed,
			Role:     RoleAdmin,
			Status:   EmployeeActive,
		}).Error; err != nil {
			return err
		}
	}

	defaultConfigs := []SystemConfig{
		{Key: "log_retention_days", Value: "90", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}
	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
