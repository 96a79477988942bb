// internal/services/cleanup_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/thesisflow/thesisflow-backend/internal/apperrors"
	"github.com/thesisflow/thesisflow-backend/internal/config"
	"github.com/thesisflow/thesisflow-backend/internal/database"
	"github.com/thesisflow/thesisflow-backend/internal/metrics"
	"github.com/thesisflow/thesisflow-backend/internal/models"
)

// maxRecordedErrors caps the error list carried in a cleanup summary. The
// failure counters keep counting past the cap.
const maxRecordedErrors = 10

// FileStore is the slice of blob storage the retention job needs.
type FileStore interface {
	DeleteFile(ctx context.Context, key string) error
	FileExists(ctx context.Context, key string) (bool, error)
}

// CleanupService purges stored files of applications whose session ended
// longer ago than the grace period. File references in the database are
// cleared per file and only once the file is gone, so a failed deletion is
// retried on the next run.
type CleanupService struct {
	db    *gorm.DB
	files FileStore
	cfg   config.CleanupConfig
	clock clockwork.Clock
	group singleflight.Group
}

// CleanupSummary reports one retention run. A run with Found == 0 is a
// successful no-op.
type CleanupSummary struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Found          int       `json:"found"`
	Processed      int       `json:"processed"`
	FilesAttempted int       `json:"files_attempted"`
	FilesDeleted   int       `json:"files_deleted"`
	AlreadyMissing int       `json:"already_missing"`
	FilesFailed    int       `json:"files_failed"`
	RowsReconciled int       `json:"rows_reconciled"`
	Errors         []string  `json:"errors,omitempty"`
}

func (s *CleanupSummary) recordError(format string, args ...interface{}) {
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	}
}

func NewCleanupService(db *gorm.DB, files FileStore, cfg config.CleanupConfig, clock clockwork.Clock) *CleanupService {
	return &CleanupService{db: db, files: files, cfg: cfg, clock: clock}
}

// RunCleanup executes one retention run. Concurrent callers, including the
// scheduler and the maintenance endpoint, collapse onto a single in-flight
// run and share its summary.
func (s *CleanupService) RunCleanup(ctx context.Context) (*CleanupSummary, error) {
	result, err, _ := s.group.Do("cleanup", func() (interface{}, error) {
		return s.run(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*CleanupSummary), nil
}

func (s *CleanupService) run(ctx context.Context) (*CleanupSummary, error) {
	summary := &CleanupSummary{StartedAt: s.clock.Now().UTC()}
	cutoff := summary.StartedAt.Add(-s.cfg.GracePeriod())

	logrus.WithFields(logrus.Fields{
		"cutoff":     cutoff,
		"batch_size": s.cfg.BatchSize,
	}).Info("Starting file retention run")

	// Batches advance on an id cursor so applications whose deletions failed
	// are not revisited within the same run.
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			metrics.CleanupRunsTotal.WithLabelValues("failed").Inc()
			return nil, apperrors.Transient("retention run canceled", err)
		}

		batch, err := s.findEligible(cutoff, s.cfg.BatchSize, afterID)
		if err != nil {
			metrics.CleanupRunsTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		summary.Found += len(batch)
		for i := range batch {
			s.purgeApplication(ctx, &batch[i], summary)
		}
		afterID = batch[len(batch)-1].ID

		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	summary.FinishedAt = s.clock.Now().UTC()
	metrics.CleanupRunsTotal.WithLabelValues("completed").Inc()
	metrics.CleanupFilesDeleted.Add(float64(summary.FilesDeleted))
	metrics.CleanupFileFailures.Add(float64(summary.FilesFailed))
	metrics.CleanupLastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))

	logrus.WithFields(logrus.Fields{
		"found":           summary.Found,
		"files_deleted":   summary.FilesDeleted,
		"already_missing": summary.AlreadyMissing,
		"files_failed":    summary.FilesFailed,
		"rows_reconciled": summary.RowsReconciled,
	}).Info("File retention run finished")

	return summary, nil
}

// findEligible selects closed applications of sessions that ended before the
// cutoff and that still reference at least one stored file. Soft-deleted
// applications and sessions are included: their files must not outlive the
// grace period either.
func (s *CleanupService) findEligible(cutoff time.Time, limit int, afterID uint) ([]models.Application, error) {
	var batch []models.Application
	err := s.db.Unscoped().
		Select("applications.*").
		Joins("JOIN sessions ON sessions.id = applications.session_id").
		Where("applications.id > ?", afterID).
		Where("applications.status IN ?", []models.ApplicationStatus{
			models.ApplicationStatusApproved,
			models.ApplicationStatusRejected,
		}).
		Where("(applications.signed_request_url IS NOT NULL OR applications.response_file_url IS NOT NULL)").
		Where("sessions.end_time < ?", cutoff).
		Order("applications.id").
		Limit(limit).
		Find(&batch).Error
	if err != nil {
		return nil, apperrors.FromDatabase("failed to find applications for cleanup", err)
	}
	return batch, nil
}

// purgeApplication deletes the application's files and reconciles the row.
// A missing file counts as success. References whose deletion failed stay in
// place, and the database write happens in its own small transaction so one
// broken row cannot poison the batch.
func (s *CleanupService) purgeApplication(ctx context.Context, application *models.Application, summary *CleanupSummary) {
	cleared := false
	for _, slot := range []**string{&application.SignedRequestURL, &application.ResponseFileURL} {
		ref := *slot
		if ref == nil {
			continue
		}
		key := strings.TrimSpace(*ref)
		if key == "" {
			*slot = nil
			cleared = true
			continue
		}

		summary.FilesAttempted++
		exists, err := s.files.FileExists(ctx, key)
		if err != nil {
			summary.FilesFailed++
			summary.recordError("application %d: checking %s: %v", application.ID, key, err)
			continue
		}
		if !exists {
			summary.AlreadyMissing++
			*slot = nil
			cleared = true
			continue
		}

		if err := s.files.DeleteFile(ctx, key); err != nil {
			summary.FilesFailed++
			summary.recordError("application %d: deleting %s: %v", application.ID, key, err)
			continue
		}
		summary.FilesDeleted++
		*slot = nil
		cleared = true
	}

	summary.Processed++
	if !cleared {
		return
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return tx.Unscoped().Model(&models.Application{}).
			Where("id = ?", application.ID).
			Updates(map[string]interface{}{
				"signed_request_url": application.SignedRequestURL,
				"response_file_url":  application.ResponseFileURL,
			}).Error
	})
	if err != nil {
		// The files are gone; the stale references resolve as already missing
		// on the next run.
		summary.recordError("application %d: reconciling references: %v", application.ID, err)
		logrus.WithError(err).WithField("application_id", application.ID).
			Warn("Failed to reconcile file references after cleanup")
		return
	}
	summary.RowsReconciled++
}
