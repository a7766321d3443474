package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ablab/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the core tables.
	if err := db.AutoMigrate(&Assignment{}, &Event{}, &ConversionFact{}, &ServiceKey{}, &Operator{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapOperator makes sure there is at least one operator
// corresponding to the bootstrap credentials in config. If an operator
// with that username already exists, it is left as-is.
func EnsureBootstrapOperator(db *gorm.DB, cfg *config.Config) error {
	if cfg.OperatorUser == "" || cfg.OperatorPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&Operator{}).Where("username = ?", cfg.OperatorUser).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.OperatorPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	op := &Operator{
		Username:     cfg.OperatorUser,
		PasswordHash: string(hash),
	}

	return db.Create(op).Error
}

// EnsureBootstrapServiceKey ensures the service key from config exists and
// is active, so traffic generators and SDKs can authenticate without a
// manual provisioning step.
func EnsureBootstrapServiceKey(db *gorm.DB, cfg *config.Config) error {
	if cfg.ServiceAPIKey == "" {
		return nil
	}

	// Use Find so "not found" doesn't log as error.
	var existing ServiceKey
	if err := db.Where("key = ?", cfg.ServiceAPIKey).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	if existing.ID != 0 {
		if existing.Active {
			return nil
		}
		existing.Active = true
		return db.Save(&existing).Error
	}

	key := &ServiceKey{
		Name:        "bootstrap",
		Environment: "internal",
		Key:         cfg.ServiceAPIKey,
		Active:      true,
	}

	return db.Create(key).Error
}
