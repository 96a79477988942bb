// internal/models/application.go
package models

import "time"

// AutoRejectReason marks rejections issued by the system when the student is
// approved by another professor, as opposed to rejections a professor wrote.
const AutoRejectReason = "Auto-rejected: Student approved by another professor"

// Application is a student's request to be supervised within a session.
// A student holds at most one live application per session, enforced by a
// partial unique index that ignores soft-deleted rows.
type Application struct {
	BaseModel
	StudentID uint `json:"student_id" gorm:"not null;index;uniqueIndex:uq_applications_student_session,where:deleted_at IS NULL"`
	SessionID uint `json:"session_id" gorm:"not null;index;uniqueIndex:uq_applications_student_session"`
	// ProfessorID mirrors the owning session's professor so ownership checks
	// and cross-session auto-rejection stay single-table queries.
	ProfessorID     uint              `json:"professor_id" gorm:"not null;index"`
	Status          ApplicationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Message         string            `json:"message,omitempty" gorm:"type:text"`
	RejectionReason string            `json:"rejection_reason,omitempty" gorm:"type:text"`
	DecidedAt       *time.Time        `json:"decided_at,omitempty"`

	// SignedRequestURL points at the signed supervision request the student
	// uploads once approved; ResponseFileURL at the professor's countersigned
	// response. Both are storage keys, nil until the file exists.
	SignedRequestURL *string `json:"signed_request_url,omitempty" gorm:"size:512"`
	ResponseFileURL  *string `json:"response_file_url,omitempty" gorm:"size:512"`

	// Relationships
	Student   User    `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Session   Session `json:"session,omitempty" gorm:"foreignKey:SessionID"`
	Professor User    `json:"professor,omitempty" gorm:"foreignKey:ProfessorID"`
}

// IsDecided reports whether a professor (or the system) has already ruled on
// the application.
func (a *Application) IsDecided() bool {
	return a.Status != ApplicationStatusPending
}

// AutoRejected reports whether the rejection was issued by the system rather
// than written by the professor.
func (a *Application) AutoRejected() bool {
	return a.Status == ApplicationStatusRejected && a.RejectionReason == AutoRejectReason
}

// FileReferences lists the storage keys the application still points at.
func (a *Application) FileReferences() []string {
	var refs []string
	if a.SignedRequestURL != nil && *a.SignedRequestURL != "" {
		refs = append(refs, *a.SignedRequestURL)
	}
	if a.ResponseFileURL != nil && *a.ResponseFileURL != "" {
		refs = append(refs, *a.ResponseFileURL)
	}
	return refs
}
