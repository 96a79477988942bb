// internal/services/session_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thesisflow/thesisflow-backend/internal/apperrors"
	"github.com/thesisflow/thesisflow-backend/internal/models"
	"github.com/thesisflow/thesisflow-backend/internal/testkit"
)

func newSessionFixture(t *testing.T) (*gorm.DB, *SessionService) {
	t.Helper()

	db := testkit.NewDB(t)
	clock := clockwork.NewFakeClockAt(fixtureNow)
	return db, NewSessionService(db, clock)
}

func TestCreateSession(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)

	session, err := service.CreateSession(professor.ID, &CreateSessionRequest{
		Title:        "  Distributed Systems Theses  ",
		Description:  "Consensus, replication, and friends.",
		StartTime:    fixtureNow.Add(24 * time.Hour),
		EndTime:      fixtureNow.Add(14 * 24 * time.Hour),
		StudentLimit: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Distributed Systems Theses", session.Title)
	assert.Equal(t, professor.ID, session.ProfessorID)
	assert.Equal(t, time.UTC, session.StartTime.Location())
	assert.Equal(t, models.SessionStateUpcoming, session.State(fixtureNow))
}

func TestCreateSessionValidation(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 4)
	student := testkit.CreateStudent(t, db, "student@uni.test")

	valid := func() *CreateSessionRequest {
		return &CreateSessionRequest{
			Title:        "Valid session",
			StartTime:    fixtureNow.Add(24 * time.Hour),
			EndTime:      fixtureNow.Add(48 * time.Hour),
			StudentLimit: 2,
		}
	}

	_, err := service.CreateSession(student.ID, valid())
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = service.CreateSession(professor.ID+999, valid())
	requireCode(t, err, apperrors.CodeNotFound)

	backwards := valid()
	backwards.StartTime, backwards.EndTime = backwards.EndTime, backwards.StartTime
	_, err = service.CreateSession(professor.ID, backwards)
	requireCode(t, err, apperrors.CodeInvalidInput)

	over := valid()
	over.StartTime = fixtureNow.Add(-72 * time.Hour)
	over.EndTime = fixtureNow.Add(-48 * time.Hour)
	_, err = service.CreateSession(professor.ID, over)
	requireCode(t, err, apperrors.CodeInvalidInput)

	greedy := valid()
	greedy.StudentLimit = 5
	_, err = service.CreateSession(professor.ID, greedy)
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestCreateSessionOverlap(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	colleague := testkit.CreateProfessor(t, db, "colleague@uni.test", 8)

	day := 24 * time.Hour
	existing, err := service.CreateSession(professor.ID, &CreateSessionRequest{
		Title:        "Existing window",
		StartTime:    fixtureNow.Add(10 * day),
		EndTime:      fixtureNow.Add(20 * day),
		StudentLimit: 3,
	})
	require.NoError(t, err)

	cases := []struct {
		name       string
		owner      uint
		start, end time.Time
		wantErr    bool
	}{
		{"ends where the other starts", professor.ID, fixtureNow.Add(2 * day), fixtureNow.Add(10 * day), false},
		{"starts where the other ends", professor.ID, fixtureNow.Add(20 * day), fixtureNow.Add(30 * day), false},
		{"fully inside", professor.ID, fixtureNow.Add(12 * day), fixtureNow.Add(15 * day), true},
		{"fully around", professor.ID, fixtureNow.Add(5 * day), fixtureNow.Add(25 * day), true},
		{"overlaps the start", professor.ID, fixtureNow.Add(8 * day), fixtureNow.Add(11 * day), true},
		{"same window, different professor", colleague.ID, fixtureNow.Add(10 * day), fixtureNow.Add(20 * day), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateSession(tc.owner, &CreateSessionRequest{
				Title:        "Candidate window",
				StartTime:    tc.start,
				EndTime:      tc.end,
				StudentLimit: 3,
			})
			if tc.wantErr {
				appErr := requireCode(t, err, apperrors.CodeConflict)
				assert.Equal(t, existing.ID, appErr.Context["conflicting_session_id"])
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestUpdateSession(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	intruder := testkit.CreateProfessor(t, db, "intruder@uni.test", 8)
	session := testkit.CreateSession(t, db, professor,
		fixtureNow.Add(24*time.Hour), fixtureNow.Add(48*time.Hour), 3)

	title := "Refined topic"
	limit := 5
	updated, err := service.UpdateSession(professor.ID, session.ID, &UpdateSessionRequest{
		Title:        &title,
		StudentLimit: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "Refined topic", updated.Title)
	assert.Equal(t, 5, updated.StudentLimit)

	_, err = service.UpdateSession(intruder.ID, session.ID, &UpdateSessionRequest{Title: &title})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = service.UpdateSession(professor.ID, session.ID+999, &UpdateSessionRequest{Title: &title})
	requireCode(t, err, apperrors.CodeNotFound)

	badEnd := session.StartTime.Add(-time.Hour)
	_, err = service.UpdateSession(professor.ID, session.ID, &UpdateSessionRequest{EndTime: &badEnd})
	requireCode(t, err, apperrors.CodeInvalidInput)

	greedy := 9
	_, err = service.UpdateSession(professor.ID, session.ID, &UpdateSessionRequest{StudentLimit: &greedy})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestUpdateSessionFrozenOnceStarted(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	started := testkit.CreateSession(t, db, professor,
		fixtureNow.Add(-time.Hour), fixtureNow.Add(48*time.Hour), 3)

	title := "Too late"
	_, err := service.UpdateSession(professor.ID, started.ID, &UpdateSessionRequest{Title: &title})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestUpdateSessionOverlapOnReschedule(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	day := 24 * time.Hour
	blocker := testkit.CreateSession(t, db, professor,
		fixtureNow.Add(10*day), fixtureNow.Add(20*day), 3)
	movable := testkit.CreateSession(t, db, professor,
		fixtureNow.Add(30*day), fixtureNow.Add(40*day), 3)

	newStart := fixtureNow.Add(15 * day)
	_, err := service.UpdateSession(professor.ID, movable.ID, &UpdateSessionRequest{StartTime: &newStart})
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, blocker.ID, appErr.Context["conflicting_session_id"])
}

func TestUpdateSessionLimitBelowEnrollment(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	session := testkit.CreateSession(t, db, professor,
		fixtureNow.Add(24*time.Hour), fixtureNow.Add(48*time.Hour), 3)
	for _, email := range []string{"a@uni.test", "b@uni.test"} {
		student := testkit.CreateStudent(t, db, email)
		testkit.CreateApplication(t, db, student, session, models.ApplicationStatusApproved)
	}

	tooSmall := 1
	_, err := service.UpdateSession(professor.ID, session.ID, &UpdateSessionRequest{StudentLimit: &tooSmall})
	requireCode(t, err, apperrors.CodeConflict)

	exact := 2
	updated, err := service.UpdateSession(professor.ID, session.ID, &UpdateSessionRequest{StudentLimit: &exact})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.StudentLimit)
}

func TestDeleteSession(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	intruder := testkit.CreateProfessor(t, db, "intruder@uni.test", 8)
	student := testkit.CreateStudent(t, db, "student@uni.test")
	session := activeSession(t, db, professor, 3)
	pending := testkit.CreateApplication(t, db, student, session, models.ApplicationStatusPending)

	requireCode(t, service.DeleteSession(intruder.ID, session.ID), apperrors.CodeForbidden)

	require.NoError(t, service.DeleteSession(professor.ID, session.ID))

	// Session and its undecided applications are soft-deleted together.
	var gone models.Session
	require.ErrorIs(t, db.First(&gone, session.ID).Error, gorm.ErrRecordNotFound)
	var app models.Application
	require.ErrorIs(t, db.First(&app, pending.ID).Error, gorm.ErrRecordNotFound)
	require.NoError(t, db.Unscoped().First(&app, pending.ID).Error)
	assert.True(t, app.DeletedAt.Valid)
}

func TestDeleteSessionWithApprovedStudents(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	student := testkit.CreateStudent(t, db, "student@uni.test")
	session := activeSession(t, db, professor, 3)
	testkit.CreateApplication(t, db, student, session, models.ApplicationStatusApproved)

	requireCode(t, service.DeleteSession(professor.ID, session.ID), apperrors.CodeConflict)
}

func TestGetSessionDetails(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	session := activeSession(t, db, professor, 5)
	for _, fixture := range []struct {
		email  string
		status models.ApplicationStatus
	}{
		{"a@uni.test", models.ApplicationStatusApproved},
		{"b@uni.test", models.ApplicationStatusApproved},
		{"c@uni.test", models.ApplicationStatusPending},
		{"d@uni.test", models.ApplicationStatusRejected},
	} {
		student := testkit.CreateStudent(t, db, fixture.email)
		testkit.CreateApplication(t, db, student, session, fixture.status)
	}

	details, err := service.GetSession(session.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStateActive, details.State)
	assert.Equal(t, int64(2), details.ApprovedCount)
	assert.Equal(t, int64(1), details.PendingCount)
	assert.Equal(t, int64(3), details.SlotsLeft)
	assert.Equal(t, professor.ID, details.Professor.ID)

	_, err = service.GetSession(session.ID + 999)
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestListSessions(t *testing.T) {
	db, service := newSessionFixture(t)
	professor := testkit.CreateProfessor(t, db, "prof@uni.test", 8)
	colleague := testkit.CreateProfessor(t, db, "colleague@uni.test", 8)
	day := 24 * time.Hour

	past := testkit.CreateSession(t, db, professor, fixtureNow.Add(-20*day), fixtureNow.Add(-10*day), 3)
	active := testkit.CreateSession(t, db, professor, fixtureNow.Add(-day), fixtureNow.Add(day), 3)
	upcoming := testkit.CreateSession(t, db, colleague, fixtureNow.Add(10*day), fixtureNow.Add(20*day), 3)
	require.NoError(t, db.Model(upcoming).Update("title", "Compilers deep dive").Error)

	params := func() *SessionSearchParams {
		p := &SessionSearchParams{}
		p.Page = 1
		p.Limit = 20
		p.Order = "desc"
		return p
	}

	all, total, err := service.ListSessions(params())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	state := models.SessionStateActive
	withState := params()
	withState.State = &state
	filtered, total, err := service.ListSessions(withState)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, active.ID, filtered[0].Session.ID)
	assert.Equal(t, models.SessionStateActive, filtered[0].State)

	pastState := models.SessionStatePast
	withPast := params()
	withPast.State = &pastState
	filtered, _, err = service.ListSessions(withPast)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, past.ID, filtered[0].Session.ID)

	searching := params()
	searching.Search = "compilers"
	filtered, total, err = service.ListSessions(searching)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, upcoming.ID, filtered[0].Session.ID)

	mine, total, err := service.ListProfessorSessions(professor.ID, params())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)
}
