package v1

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/booklane/library-backend/v1/models"
)

// DatabaseConfig holds GORM database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewDatabaseConfig creates a new GORM database configuration
func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            getEnvOrDefault("LIBRARY_DATABASE_HOSTNAME", "localhost"),
		Port:            getEnvOrDefault("LIBRARY_DATABASE_PORT", "5432"),
		Username:        getEnvOrDefault("LIBRARY_DATABASE_USERNAME", "postgres"),
		Password:        getEnvOrDefault("LIBRARY_DATABASE_PASSWORD", "password"),
		Database:        getEnvOrDefault("LIBRARY_DATABASE_NAME", "library"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "require"),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ConnectGormDB establishes a GORM connection to PostgreSQL
func ConnectGormDB(config *DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)

	gormLogger := logger.Default.LogMode(logger.Warn)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database with GORM",
		"host", config.Host,
		"port", config.Port,
		"database", config.Database)

	if os.Getenv("RUN_MIGRATION") == "true" {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	} else {
		slog.Info("Database connected (migration skipped)")
	}

	return db, nil
}

// Migrate runs GORM auto-migration for all models plus the constraints
// auto-migration cannot express
func Migrate(db *gorm.DB) error {
	slog.Info("Running GORM auto-migration")
	err := db.AutoMigrate(
		&models.User{},
		&models.MemberProfile{},
		&models.Author{},
		&models.Category{},
		&models.Book{},
		&models.BookCopy{},
		&models.BorrowTransaction{},
		&models.FinePayment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}

	// One open loan per copy. Partial index syntax is shared by PostgreSQL
	// and SQLite, which covers both production and test dialects.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_loan_per_copy
		ON borrow_transactions (book_copy_id) WHERE status = 'borrowed'`).Error
	if err != nil {
		return fmt.Errorf("failed to create open-loan index: %w", err)
	}

	slog.Info("GORM auto-migration completed successfully")
	return nil
}
