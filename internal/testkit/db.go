// internal/testkit/db.go

// Package testkit provides the database fixture shared by service, scheduler,
// and handler tests. Tests run against in-memory SQLite migrated to the same
// schema the server uses.
package testkit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thesisflow/thesisflow-backend/internal/database"
	"github.com/thesisflow/thesisflow-backend/internal/models"
)

// NewDB opens an isolated in-memory database and migrates the full schema.
// The pool is capped at a single connection so every handle sees the same
// memory database and writers never trip over SQLITE_BUSY.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// CreateProfessor inserts a professor with the given per-session student cap.
func CreateProfessor(t *testing.T, db *gorm.DB, email string, maxStudents int) *models.User {
	t.Helper()

	professor := &models.User{
		Email:       email,
		Name:        "Professor " + email,
		Role:        models.UserRoleProfessor,
		MaxStudents: maxStudents,
	}
	require.NoError(t, professor.SetPassword("Testpass123!"))
	require.NoError(t, db.Create(professor).Error)
	return professor
}

// CreateStudent inserts a student.
func CreateStudent(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	student := &models.User{
		Email: email,
		Name:  "Student " + email,
		Role:  models.UserRoleStudent,
	}
	require.NoError(t, student.SetPassword("Testpass123!"))
	require.NoError(t, db.Create(student).Error)
	return student
}

// CreateSession inserts a session owned by the professor.
func CreateSession(t *testing.T, db *gorm.DB, professor *models.User, start, end time.Time, limit int) *models.Session {
	t.Helper()

	session := &models.Session{
		ProfessorID:  professor.ID,
		Title:        "Thesis supervision",
		StartTime:    start,
		EndTime:      end,
		StudentLimit: limit,
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

// CreateApplication inserts an application row directly, bypassing the
// service rules. Useful for retention and reporting fixtures.
func CreateApplication(t *testing.T, db *gorm.DB, student *models.User, session *models.Session, status models.ApplicationStatus) *models.Application {
	t.Helper()

	app := &models.Application{
		StudentID:   student.ID,
		SessionID:   session.ID,
		ProfessorID: session.ProfessorID,
		Status:      status,
	}
	if status != models.ApplicationStatusPending {
		now := time.Now().UTC()
		app.DecidedAt = &now
	}
	require.NoError(t, db.Create(app).Error)
	return app
}
