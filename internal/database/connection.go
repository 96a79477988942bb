// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/thesisflow/thesisflow-backend/internal/config"
	"github.com/thesisflow/thesisflow-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error

	// Configure GORM logger
	logLevel := logger.Info
	if cfg.LogLevel == "silent" {
		logLevel = logger.Silent
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Map driver duplicate-key errors onto gorm.ErrDuplicatedKey so the
		// unique-application guard can recognize lost races.
		TranslateError: true,
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Application{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)",

		// Session indexes
		"CREATE INDEX IF NOT EXISTS idx_sessions_professor ON sessions(professor_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_window ON sessions(start_time, end_time)",

		// Application indexes
		"CREATE INDEX IF NOT EXISTS idx_applications_session_status ON applications(session_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_applications_student_status ON applications(student_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_applications_professor_status ON applications(professor_id, status)",

		// One live application per student and session; soft-deleted rows are
		// out of scope so a withdrawn application can be re-submitted.
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_student_session ON applications(student_id, session_id) WHERE deleted_at IS NULL",

		// The retention job only looks at applications that still point at a
		// stored file; their sessions are filtered by end_time via the window
		// index.
		"CREATE INDEX IF NOT EXISTS idx_applications_with_files ON applications(session_id) WHERE signed_request_url IS NOT NULL OR response_file_url IS NOT NULL",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).Warnf("Failed to create index: %s", index)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	logrus.Info("Seeding initial data...")

	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	if userCount > 0 {
		return nil
	}

	professor := &models.User{
		Email:       "elena.ionescu@thesisflow.dev",
		Name:        "Prof. Elena Ionescu",
		Role:        models.UserRoleProfessor,
		MaxStudents: 8,
		ProfileData: models.JSONB{
			"department": "Computer Science",
			"title":      "Associate Professor",
		},
	}
	if err := professor.SetPassword("professor123!"); err != nil {
		return fmt.Errorf("failed to set professor password: %w", err)
	}
	if err := db.Create(professor).Error; err != nil {
		return fmt.Errorf("failed to create demo professor: %w", err)
	}

	student := &models.User{
		Email: "andrei.popa@thesisflow.dev",
		Name:  "Andrei Popa",
		Role:  models.UserRoleStudent,
		ProfileData: models.JSONB{
			"program": "MSc Software Engineering",
			"year":    2,
		},
	}
	if err := student.SetPassword("student123!"); err != nil {
		return fmt.Errorf("failed to set student password: %w", err)
	}
	if err := db.Create(student).Error; err != nil {
		return fmt.Errorf("failed to create demo student: %w", err)
	}

	logrus.Info("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// LockForUpdate adds a row lock to the query on engines that support it.
// SQLite serializes writers on its own, so the clause is skipped there.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
