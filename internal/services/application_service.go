// internal/services/application_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/thesisflow/thesisflow-backend/internal/apperrors"
	"github.com/thesisflow/thesisflow-backend/internal/database"
	"github.com/thesisflow/thesisflow-backend/internal/metrics"
	"github.com/thesisflow/thesisflow-backend/internal/models"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

// minRejectionReasonLength is counted in runes after trimming.
const minRejectionReasonLength = 10

type ApplicationService struct {
	db      *gorm.DB
	storage *StorageService
	clock   clockwork.Clock
}

type SubmitApplicationRequest struct {
	SessionID uint   `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"omitempty,max=2000"`
}

type RejectApplicationRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type UnapproveApplicationRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ApplicationSearchParams struct {
	utils.PaginationParams
	Status *models.ApplicationStatus `json:"status,omitempty"`
}

func NewApplicationService(db *gorm.DB, storage *StorageService, clock clockwork.Clock) *ApplicationService {
	return &ApplicationService{db: db, storage: storage, clock: clock}
}

// SubmitApplication files a pending application for the given student. The
// window, capacity, and duplicate checks all run inside the transaction that
// creates the row, under the session+student lock.
func (s *ApplicationService) SubmitApplication(studentID uint, req *SubmitApplicationRequest) (*models.Application, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.InvalidInput("validation failed").WithContext("fields", utils.GetValidationErrors(err))
	}

	var student models.User
	if err := s.db.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("student not found")
		}
		return nil, apperrors.FromDatabase("failed to load student", err)
	}
	if !student.IsStudent() {
		return nil, apperrors.Forbidden("only students can apply for supervision")
	}

	release := decisionLocks.AcquireSessionStudent(req.SessionID, studentID)
	defer release()

	application := &models.Application{
		StudentID: studentID,
		SessionID: req.SessionID,
		Status:    models.ApplicationStatusPending,
		Message:   strings.TrimSpace(req.Message),
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var session models.Session
		if err := database.LockForUpdate(tx).First(&session, req.SessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("session not found")
			}
			return apperrors.FromDatabase("failed to load session", err)
		}

		now := s.clock.Now().UTC()
		if !session.AcceptsApplications(now) {
			return apperrors.Conflict("the enrollment window is not open").
				WithContext("session_state", string(session.State(now)))
		}

		approved, err := countApprovedApplications(tx, session.ID, 0)
		if err != nil {
			return err
		}
		if availableSlots(&session, approved) <= 0 {
			return apperrors.Conflict("the session has no slots left").
				WithContext("student_limit", session.StudentLimit)
		}

		var existing models.Application
		err = tx.Where("student_id = ? AND session_id = ?", studentID, session.ID).First(&existing).Error
		if err == nil {
			return apperrors.Conflict("you already applied to this session").
				WithContext("existing_application_id", existing.ID).
				WithContext("existing_status", string(existing.Status))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.FromDatabase("failed to check for an existing application", err)
		}

		application.ProfessorID = session.ProfessorID
		if err := tx.Create(application).Error; err != nil {
			// The unique index backstops the duplicate check across instances.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("you already applied to this session")
			}
			return apperrors.FromDatabase("failed to create application", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationsSubmittedTotal.Inc()
	return application, nil
}

// ApproveApplication grants a slot and auto-rejects the student's other
// pending applications, everywhere, in the same transaction.
func (s *ApplicationService) ApproveApplication(professorID, applicationID uint) (*models.Application, error) {
	application, err := s.loadForDecision(applicationID)
	if err != nil {
		return nil, err
	}

	release := decisionLocks.AcquireSessionStudent(application.SessionID, application.StudentID)
	defer release()

	var autoRejected int64
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(application, applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("application not found")
			}
			return apperrors.FromDatabase("failed to load application", err)
		}
		if application.ProfessorID != professorID {
			return apperrors.Forbidden("you do not own this application's session")
		}
		if application.Status != models.ApplicationStatusPending {
			return apperrors.Conflict("application already processed").
				WithContext("status", string(application.Status))
		}

		var session models.Session
		if err := database.LockForUpdate(tx).First(&session, application.SessionID).Error; err != nil {
			return apperrors.FromDatabase("failed to load session", err)
		}

		// Capacity is recounted here, not read from a cached counter.
		approved, err := countApprovedApplications(tx, session.ID, application.ID)
		if err != nil {
			return err
		}
		if approved >= int64(session.StudentLimit) {
			return apperrors.Conflict("the session has no slots left").
				WithContext("student_limit", session.StudentLimit)
		}

		// A student holds at most one approved application in the system.
		var elsewhere int64
		err = tx.Model(&models.Application{}).
			Where("student_id = ? AND status = ? AND id != ?",
				application.StudentID, models.ApplicationStatusApproved, application.ID).
			Count(&elsewhere).Error
		if err != nil {
			return apperrors.FromDatabase("failed to check the student's other applications", err)
		}
		if elsewhere > 0 {
			return apperrors.Conflict("the student already holds an approved supervision")
		}

		now := s.clock.Now().UTC()
		application.Status = models.ApplicationStatusApproved
		application.DecidedAt = &now
		if err := tx.Save(application).Error; err != nil {
			return apperrors.FromDatabase("failed to approve application", err)
		}

		result := tx.Model(&models.Application{}).
			Where("student_id = ? AND status = ? AND id != ?",
				application.StudentID, models.ApplicationStatusPending, application.ID).
			Updates(map[string]interface{}{
				"status":           models.ApplicationStatusRejected,
				"rejection_reason": models.AutoRejectReason,
				"decided_at":       now,
			})
		if result.Error != nil {
			return apperrors.FromDatabase("failed to auto-reject sibling applications", result.Error)
		}
		autoRejected = result.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationDecisionsTotal.WithLabelValues("approve").Inc()
	metrics.ApplicationDecisionsTotal.WithLabelValues("auto_reject").Add(float64(autoRejected))
	logrus.WithFields(logrus.Fields{
		"application_id": application.ID,
		"student_id":     application.StudentID,
		"session_id":     application.SessionID,
		"auto_rejected":  autoRejected,
	}).Info("Application approved")

	return application, nil
}

// RejectApplication declines a pending application with a written reason.
func (s *ApplicationService) RejectApplication(professorID, applicationID uint, req *RejectApplicationRequest) (*models.Application, error) {
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < minRejectionReasonLength {
		return nil, apperrors.InvalidInput("the rejection reason must be at least 10 characters long")
	}

	application, err := s.loadForDecision(applicationID)
	if err != nil {
		return nil, err
	}

	release := decisionLocks.AcquireSessionStudent(application.SessionID, application.StudentID)
	defer release()

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(application, applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("application not found")
			}
			return apperrors.FromDatabase("failed to load application", err)
		}
		if application.ProfessorID != professorID {
			return apperrors.Forbidden("you do not own this application's session")
		}
		if application.Status != models.ApplicationStatusPending {
			return apperrors.Conflict("application already processed").
				WithContext("status", string(application.Status))
		}

		now := s.clock.Now().UTC()
		application.Status = models.ApplicationStatusRejected
		application.RejectionReason = reason
		application.DecidedAt = &now
		if err := tx.Save(application).Error; err != nil {
			return apperrors.FromDatabase("failed to reject application", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationDecisionsTotal.WithLabelValues("reject").Inc()
	return application, nil
}

// UnapproveApplication revokes an approval. The application lands in the
// rejected state with the professor's reason, the signed request reference is
// cleared so the document cannot be mistaken for a live agreement, and the
// freed slot becomes visible to the next capacity recount.
func (s *ApplicationService) UnapproveApplication(ctx context.Context, professorID, applicationID uint, req *UnapproveApplicationRequest) (*models.Application, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperrors.InvalidInput("a reason is required to revoke an approval")
	}

	application, err := s.loadForDecision(applicationID)
	if err != nil {
		return nil, err
	}

	release := decisionLocks.AcquireSessionStudent(application.SessionID, application.StudentID)
	defer release()

	var staleSignedFile string
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(application, applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("application not found")
			}
			return apperrors.FromDatabase("failed to load application", err)
		}
		if application.ProfessorID != professorID {
			return apperrors.Forbidden("you do not own this application's session")
		}
		if application.Status != models.ApplicationStatusApproved {
			return apperrors.Conflict("only approved applications can be unapproved").
				WithContext("status", string(application.Status))
		}

		if application.SignedRequestURL != nil {
			staleSignedFile = *application.SignedRequestURL
		}

		now := s.clock.Now().UTC()
		application.Status = models.ApplicationStatusRejected
		application.RejectionReason = reason
		application.DecidedAt = &now
		application.SignedRequestURL = nil
		if err := tx.Save(application).Error; err != nil {
			return apperrors.FromDatabase("failed to unapprove application", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The stale agreement is deleted outside the transaction; a leftover file
	// is harmless and the retention sweep picks it up eventually.
	if staleSignedFile != "" {
		if err := s.storage.DeleteFile(ctx, staleSignedFile); err != nil {
			logrus.WithError(err).WithField("file", staleSignedFile).
				Warn("Failed to delete a revoked signed request file")
		}
	}

	metrics.ApplicationDecisionsTotal.WithLabelValues("unapprove").Inc()
	return application, nil
}

// WithdrawApplication lets a student retract an application the professor has
// not ruled on yet. The row is soft-deleted, which frees the unique slot for
// a fresh application to the same session.
func (s *ApplicationService) WithdrawApplication(studentID, applicationID uint) error {
	var application models.Application
	if err := s.db.First(&application, applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("application not found")
		}
		return apperrors.FromDatabase("failed to load application", err)
	}

	release := decisionLocks.AcquireSessionStudent(application.SessionID, application.StudentID)
	defer release()

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(&application, applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("application not found")
			}
			return apperrors.FromDatabase("failed to load application", err)
		}
		if application.StudentID != studentID {
			return apperrors.Forbidden("you do not own this application")
		}
		if application.Status != models.ApplicationStatusPending {
			return apperrors.Conflict("decided applications cannot be withdrawn").
				WithContext("status", string(application.Status))
		}
		if err := tx.Delete(&application).Error; err != nil {
			return apperrors.FromDatabase("failed to withdraw application", err)
		}
		return nil
	})
}

// SetSignedRequestFile records the storage key of the signed supervision
// request. Only the owning student may attach it, and only while the
// application is approved; the status check shares the transaction with the
// write so a concurrent revocation cannot slip between them.
func (s *ApplicationService) SetSignedRequestFile(ctx context.Context, studentID, applicationID uint, fileKey string) (*models.Application, error) {
	return s.setFileReference(ctx, applicationID, fileKey, func(application *models.Application) (**string, error) {
		if application.StudentID != studentID {
			return nil, apperrors.Forbidden("you do not own this application")
		}
		return &application.SignedRequestURL, nil
	})
}

// SetResponseFile records the storage key of the professor's countersigned
// response, under the same approved-only rule as the signed request.
func (s *ApplicationService) SetResponseFile(ctx context.Context, professorID, applicationID uint, fileKey string) (*models.Application, error) {
	return s.setFileReference(ctx, applicationID, fileKey, func(application *models.Application) (**string, error) {
		if application.ProfessorID != professorID {
			return nil, apperrors.Forbidden("you do not own this application's session")
		}
		return &application.ResponseFileURL, nil
	})
}

func (s *ApplicationService) setFileReference(ctx context.Context, applicationID uint, fileKey string, slot func(*models.Application) (**string, error)) (*models.Application, error) {
	if strings.TrimSpace(fileKey) == "" {
		return nil, apperrors.InvalidInput("a file key is required")
	}

	var application models.Application
	var staleFile string
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(&application, applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("application not found")
			}
			return apperrors.FromDatabase("failed to load application", err)
		}

		ref, err := slot(&application)
		if err != nil {
			return err
		}
		if application.Status != models.ApplicationStatusApproved {
			return apperrors.Conflict("files can only be attached to approved applications").
				WithContext("status", string(application.Status))
		}

		if *ref != nil && **ref != fileKey {
			staleFile = **ref
		}
		*ref = &fileKey
		if err := tx.Save(&application).Error; err != nil {
			return apperrors.FromDatabase("failed to record the file", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Replacing a document orphans the previous upload; remove it best-effort.
	if staleFile != "" {
		if err := s.storage.DeleteFile(ctx, staleFile); err != nil {
			logrus.WithError(err).WithField("file", staleFile).
				Warn("Failed to delete a replaced application file")
		}
	}

	return &application, nil
}

func (s *ApplicationService) GetApplication(userID, applicationID uint) (*models.Application, error) {
	var application models.Application
	err := s.db.Preload("Student").Preload("Session").Preload("Professor").
		First(&application, applicationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("application not found")
		}
		return nil, apperrors.FromDatabase("failed to load application", err)
	}

	if application.StudentID != userID && application.ProfessorID != userID {
		return nil, apperrors.Forbidden("you are not a party to this application")
	}
	return &application, nil
}

func (s *ApplicationService) ListStudentApplications(studentID uint, params *ApplicationSearchParams) ([]models.Application, int64, error) {
	query := s.db.Model(&models.Application{}).
		Where("student_id = ?", studentID).
		Preload("Session").Preload("Professor")
	return s.listApplications(query, params)
}

// ListSessionApplications returns the applications of one of the professor's
// sessions. The session must exist and belong to the caller.
func (s *ApplicationService) ListSessionApplications(professorID, sessionID uint, params *ApplicationSearchParams) ([]models.Application, int64, error) {
	var session models.Session
	if err := s.db.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperrors.NotFound("session not found")
		}
		return nil, 0, apperrors.FromDatabase("failed to load session", err)
	}
	if session.ProfessorID != professorID {
		return nil, 0, apperrors.Forbidden("you do not own this session")
	}

	query := s.db.Model(&models.Application{}).
		Where("session_id = ?", sessionID).
		Preload("Student")
	return s.listApplications(query, params)
}

func (s *ApplicationService) listApplications(query *gorm.DB, params *ApplicationSearchParams) ([]models.Application, int64, error) {
	// Apply filters
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.FromDatabase("failed to count applications", err)
	}

	// Apply sorting and pagination
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "decided_at", "status"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var applications []models.Application
	if err := query.Find(&applications).Error; err != nil {
		return nil, 0, apperrors.FromDatabase("failed to list applications", err)
	}
	return applications, total, nil
}

// loadForDecision fetches just enough of the application to know which locks
// to take. Every check that matters is redone under the row lock.
func (s *ApplicationService) loadForDecision(applicationID uint) (*models.Application, error) {
	var application models.Application
	if err := s.db.First(&application, applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("application not found")
		}
		return nil, apperrors.FromDatabase("failed to load application", err)
	}
	return &application, nil
}
