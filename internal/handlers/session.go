// internal/handlers/session.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thesisflow/thesisflow-backend/internal/i18n"
	"github.com/thesisflow/thesisflow-backend/internal/models"
	"github.com/thesisflow/thesisflow-backend/internal/services"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

type SessionHandler struct {
	sessionService     *services.SessionService
	applicationService *services.ApplicationService
}

func NewSessionHandler(sessionService *services.SessionService, applicationService *services.ApplicationService) *SessionHandler {
	return &SessionHandler{
		sessionService:     sessionService,
		applicationService: applicationService,
	}
}

// POST /professor/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	professorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	session, err := h.sessionService.CreateSession(professorID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySessionCreated),
		"session": session,
	})
}

// PUT /professor/sessions/:id
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	session, err := h.sessionService.UpdateSession(professorID, sessionID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySessionUpdated),
		"session": session,
	})
}

// DELETE /professor/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.sessionService.DeleteSession(professorID, sessionID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySessionDeleted),
	})
}

// GET /sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(sessionID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"session": session,
	})
}

// GET /sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	search, ok := h.buildSearchParams(c)
	if !ok {
		return
	}

	sessions, total, err := h.sessionService.ListSessions(search)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(sessions, total, search.PaginationParams)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponse(c, result)
}

// GET /professor/sessions
func (h *SessionHandler) ListMySessions(c *gin.Context) {
	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	search, ok := h.buildSearchParams(c)
	if !ok {
		return
	}

	sessions, total, err := h.sessionService.ListProfessorSessions(professorID, search)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(sessions, total, search.PaginationParams)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponse(c, result)
}

// GET /professor/sessions/:id/applications
func (h *SessionHandler) ListSessionApplications(c *gin.Context) {
	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	search, ok := buildApplicationSearchParams(c)
	if !ok {
		return
	}

	applications, total, err := h.applicationService.ListSessionApplications(professorID, sessionID, search)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(applications, total, search.PaginationParams)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponse(c, result)
}

func (h *SessionHandler) buildSearchParams(c *gin.Context) (*services.SessionSearchParams, bool) {
	params := utils.GetPaginationParams(c)
	search := &services.SessionSearchParams{PaginationParams: params}

	if params.State != "" {
		state := models.SessionState(params.State)
		if state != models.SessionStateUpcoming &&
			state != models.SessionStateActive &&
			state != models.SessionStatePast {
			utils.BadRequestResponse(c, "Invalid state filter", nil)
			return nil, false
		}
		search.State = &state
	}

	if raw := c.Query("professor_id"); raw != "" {
		professorID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || professorID == 0 {
			utils.BadRequestResponse(c, "Invalid professor_id parameter", nil)
			return nil, false
		}
		id := uint(professorID)
		search.ProfessorID = &id
	}

	return search, true
}
