// internal/services/session_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/thesisflow/thesisflow-backend/internal/apperrors"
	"github.com/thesisflow/thesisflow-backend/internal/database"
	"github.com/thesisflow/thesisflow-backend/internal/models"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

// decisionLocks serializes every operation that can change who occupies a
// session slot. Keys cover sessions, students, and professors; the process
// shares one registry so two service instances cannot bypass each other.
// Cross-instance safety additionally rests on row locks and the unique
// application index.
var decisionLocks = newKeyedMutex()

type SessionService struct {
	db    *gorm.DB
	clock clockwork.Clock
}

type CreateSessionRequest struct {
	Title        string    `json:"title" validate:"required,min=3,max=200"`
	Description  string    `json:"description" validate:"omitempty,max=2000"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	StudentLimit int       `json:"student_limit" validate:"required,min=1"`
}

type UpdateSessionRequest struct {
	Title        *string    `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description  *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	StudentLimit *int       `json:"student_limit,omitempty" validate:"omitempty,min=1"`
}

type SessionSearchParams struct {
	utils.PaginationParams
	ProfessorID *uint                `json:"professor_id,omitempty"`
	State       *models.SessionState `json:"state,omitempty"`
}

// SessionDetails is a session together with its derived state and occupancy.
type SessionDetails struct {
	models.Session
	State         models.SessionState `json:"state"`
	ApprovedCount int64               `json:"approved_count"`
	PendingCount  int64               `json:"pending_count"`
	SlotsLeft     int64               `json:"slots_left"`
}

func NewSessionService(db *gorm.DB, clock clockwork.Clock) *SessionService {
	return &SessionService{db: db, clock: clock}
}

func (s *SessionService) CreateSession(professorID uint, req *CreateSessionRequest) (*models.Session, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.InvalidInput("validation failed").WithContext("fields", utils.GetValidationErrors(err))
	}

	// Verify the caller is a professor
	var professor models.User
	if err := s.db.First(&professor, professorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("professor not found")
		}
		return nil, apperrors.FromDatabase("failed to load professor", err)
	}
	if !professor.IsProfessor() {
		return nil, apperrors.Forbidden("only professors can open supervision sessions")
	}

	start := req.StartTime.UTC()
	end := req.EndTime.UTC()

	if !end.After(start) {
		return nil, apperrors.InvalidInput("end time must be after start time")
	}
	if !end.After(s.clock.Now().UTC()) {
		return nil, apperrors.InvalidInput("the enrollment window must end in the future")
	}
	if req.StudentLimit > professor.MaxStudents {
		return nil, apperrors.InvalidInput(
			fmt.Sprintf("student limit %d exceeds your supervision cap of %d", req.StudentLimit, professor.MaxStudents))
	}

	session := &models.Session{
		ProfessorID:  professorID,
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		StartTime:    start,
		EndTime:      end,
		StudentLimit: req.StudentLimit,
	}

	// The overlap check and the insert must see the same set of sessions, so
	// concurrent creates by one professor are serialized.
	release := decisionLocks.Acquire(professorKey(professorID))
	defer release()

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := checkSessionOverlap(tx, professorID, start, end, 0); err != nil {
			return err
		}
		if err := tx.Create(session).Error; err != nil {
			return apperrors.FromDatabase("failed to create session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateSession edits a session that has not started yet. Once the enrollment
// window opens the session is frozen except through decisions.
func (s *SessionService) UpdateSession(professorID, sessionID uint, req *UpdateSessionRequest) (*models.Session, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.InvalidInput("validation failed").WithContext("fields", utils.GetValidationErrors(err))
	}

	releaseProfessor := decisionLocks.Acquire(professorKey(professorID))
	defer releaseProfessor()
	releaseSession := decisionLocks.Acquire(sessionKey(sessionID))
	defer releaseSession()

	var session models.Session
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("session not found")
			}
			return apperrors.FromDatabase("failed to load session", err)
		}
		if session.ProfessorID != professorID {
			return apperrors.Forbidden("you do not own this session")
		}

		if session.State(s.clock.Now().UTC()) != models.SessionStateUpcoming {
			return apperrors.Conflict("only upcoming sessions can be modified")
		}

		if req.Title != nil {
			session.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			session.Description = strings.TrimSpace(*req.Description)
		}
		if req.StartTime != nil {
			session.StartTime = req.StartTime.UTC()
		}
		if req.EndTime != nil {
			session.EndTime = req.EndTime.UTC()
		}
		if !session.EndTime.After(session.StartTime) {
			return apperrors.InvalidInput("end time must be after start time")
		}

		if req.StartTime != nil || req.EndTime != nil {
			if err := checkSessionOverlap(tx, professorID, session.StartTime, session.EndTime, session.ID); err != nil {
				return err
			}
		}

		if req.StudentLimit != nil {
			var professor models.User
			if err := tx.First(&professor, professorID).Error; err != nil {
				return apperrors.FromDatabase("failed to load professor", err)
			}
			if *req.StudentLimit > professor.MaxStudents {
				return apperrors.InvalidInput(
					fmt.Sprintf("student limit %d exceeds your supervision cap of %d", *req.StudentLimit, professor.MaxStudents))
			}

			approved, err := countApprovedApplications(tx, session.ID, 0)
			if err != nil {
				return err
			}
			if int64(*req.StudentLimit) < approved {
				return apperrors.Conflict(
					fmt.Sprintf("student limit cannot drop below the %d already approved students", approved))
			}
			session.StudentLimit = *req.StudentLimit
		}

		if err := tx.Save(&session).Error; err != nil {
			return apperrors.FromDatabase("failed to update session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// DeleteSession soft-deletes a session and its undecided applications. A
// session holding approved students cannot be removed.
func (s *SessionService) DeleteSession(professorID, sessionID uint) error {
	release := decisionLocks.Acquire(sessionKey(sessionID))
	defer release()

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var session models.Session
		if err := database.LockForUpdate(tx).First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("session not found")
			}
			return apperrors.FromDatabase("failed to load session", err)
		}
		if session.ProfessorID != professorID {
			return apperrors.Forbidden("you do not own this session")
		}

		approved, err := countApprovedApplications(tx, sessionID, 0)
		if err != nil {
			return err
		}
		if approved > 0 {
			return apperrors.Conflict("sessions with approved students cannot be deleted")
		}

		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Application{}).Error; err != nil {
			return apperrors.FromDatabase("failed to remove applications", err)
		}
		if err := tx.Delete(&session).Error; err != nil {
			return apperrors.FromDatabase("failed to delete session", err)
		}
		return nil
	})
}

func (s *SessionService) GetSession(sessionID uint) (*SessionDetails, error) {
	var session models.Session
	if err := s.db.Preload("Professor").First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("session not found")
		}
		return nil, apperrors.FromDatabase("failed to load session", err)
	}

	details, err := s.withStats([]models.Session{session})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *SessionService) ListSessions(params *SessionSearchParams) ([]SessionDetails, int64, error) {
	query := s.db.Model(&models.Session{}).Preload("Professor")

	// Apply filters
	if params.ProfessorID != nil {
		query = query.Where("professor_id = ?", *params.ProfessorID)
	}
	if params.State != nil {
		query = applyStateFilter(query, *params.State, s.clock.Now().UTC())
	}
	if params.Search != "" {
		term := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", term, term)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDatabase("failed to count sessions", err)
	}

	// Apply sorting and pagination
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "start_time", "end_time"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var sessions []models.Session
	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, apperrors.FromDatabase("failed to list sessions", err)
	}

	details, err := s.withStats(sessions)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func (s *SessionService) ListProfessorSessions(professorID uint, params *SessionSearchParams) ([]SessionDetails, int64, error) {
	scoped := *params
	scoped.ProfessorID = &professorID
	return s.ListSessions(&scoped)
}

func (s *SessionService) withStats(sessions []models.Session) ([]SessionDetails, error) {
	details := make([]SessionDetails, 0, len(sessions))
	if len(sessions) == 0 {
		return details, nil
	}

	ids := make([]uint, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}

	var rows []struct {
		SessionID uint
		Status    models.ApplicationStatus
		Total     int64
	}
	err := s.db.Model(&models.Application{}).
		Select("session_id, status, COUNT(*) as total").
		Where("session_id IN ?", ids).
		Group("session_id, status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.FromDatabase("failed to count applications", err)
	}

	approved := make(map[uint]int64, len(sessions))
	pending := make(map[uint]int64, len(sessions))
	for _, row := range rows {
		switch row.Status {
		case models.ApplicationStatusApproved:
			approved[row.SessionID] = row.Total
		case models.ApplicationStatusPending:
			pending[row.SessionID] = row.Total
		}
	}

	now := s.clock.Now().UTC()
	for _, session := range sessions {
		details = append(details, SessionDetails{
			Session:       session,
			State:         session.State(now),
			ApprovedCount: approved[session.ID],
			PendingCount:  pending[session.ID],
			SlotsLeft:     availableSlots(&session, approved[session.ID]),
		})
	}
	return details, nil
}

func applyStateFilter(query *gorm.DB, state models.SessionState, now time.Time) *gorm.DB {
	switch state {
	case models.SessionStateUpcoming:
		return query.Where("start_time > ?", now)
	case models.SessionStateActive:
		return query.Where("start_time <= ? AND end_time > ?", now, now)
	case models.SessionStatePast:
		return query.Where("end_time <= ?", now)
	default:
		return query
	}
}

// checkSessionOverlap rejects a window that intersects any other session of
// the professor. Half-open windows may share a boundary instant.
func checkSessionOverlap(tx *gorm.DB, professorID uint, start, end time.Time, excludeID uint) error {
	query := tx.Model(&models.Session{}).
		Where("professor_id = ? AND start_time < ? AND end_time > ?", professorID, end, start)
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}

	var conflicting models.Session
	err := query.First(&conflicting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.FromDatabase("failed to check session overlap", err)
	}

	return apperrors.Conflict("the session overlaps one of your existing sessions").
		WithContext("conflicting_session_id", conflicting.ID)
}

// availableSlots is the occupancy rule: free capacity is the limit minus the
// approved headcount, never persisted, always derived by recount.
func availableSlots(session *models.Session, approvedCount int64) int64 {
	return int64(session.StudentLimit) - approvedCount
}

// countApprovedApplications is the single source of occupancy truth used by
// capacity checks. excludeID leaves one application out of the count so an
// approval can re-check capacity against its siblings only.
func countApprovedApplications(tx *gorm.DB, sessionID uint, excludeID uint) (int64, error) {
	query := tx.Model(&models.Application{}).
		Where("session_id = ? AND status = ?", sessionID, models.ApplicationStatusApproved)
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, apperrors.FromDatabase("failed to count approved applications", err)
	}
	return count, nil
}
