// internal/models/session.go
package models

import "time"

// Session is a supervision window a professor opens for student applications.
// The window is half-open: applications are accepted from StartTime inclusive
// up to but excluding EndTime.
type Session struct {
	BaseModel
	ProfessorID  uint      `json:"professor_id" gorm:"not null;index"`
	Title        string    `json:"title" gorm:"size:200;not null"`
	Description  string    `json:"description" gorm:"type:text"`
	StartTime    time.Time `json:"start_time" gorm:"not null;index"`
	EndTime      time.Time `json:"end_time" gorm:"not null;index"`
	StudentLimit int       `json:"student_limit" gorm:"not null"`

	// Relationships
	Professor    User          `json:"professor,omitempty" gorm:"foreignKey:ProfessorID"`
	Applications []Application `json:"applications,omitempty" gorm:"foreignKey:SessionID"`
}

// State reports the lifecycle state of the session at the given instant.
// An instant equal to EndTime is already past.
func (s *Session) State(now time.Time) SessionState {
	switch {
	case now.Before(s.StartTime):
		return SessionStateUpcoming
	case now.Before(s.EndTime):
		return SessionStateActive
	default:
		return SessionStatePast
	}
}

// AcceptsApplications reports whether the enrollment window is open at now.
func (s *Session) AcceptsApplications(now time.Time) bool {
	return s.State(now) == SessionStateActive
}

// Overlaps reports whether [StartTime, EndTime) intersects [start, end).
// Windows that merely touch at a boundary do not overlap.
func (s *Session) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}
