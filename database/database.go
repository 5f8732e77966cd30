package database

import (
	"errors"
	"fmt"

	config "github.com/anjiri1684/course_certificates/configs"
	"github.com/anjiri1684/course_certificates/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		DisableNestedTransaction:                 true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func ConnectDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	db, err := Open(postgres.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.CertificateTemplate{},
		&models.IssuedCertificate{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// SeedAdmin creates the configured admin account if it does not exist yet.
// It reports whether a new user was created.
func SeedAdmin(db *gorm.DB, settings config.Settings) (bool, error) {
	if settings.AdminEmail == "" || settings.AdminPassword == "" {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", settings.AdminEmail).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(settings.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		FullName: settings.AdminFullName,
		Email:    settings.AdminEmail,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, fmt.Errorf("seed admin user: %w", err)
	}
	return true, nil
}
