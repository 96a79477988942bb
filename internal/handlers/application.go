// internal/handlers/application.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thesisflow/thesisflow-backend/internal/i18n"
	"github.com/thesisflow/thesisflow-backend/internal/models"
	"github.com/thesisflow/thesisflow-backend/internal/services"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

type ApplicationHandler struct {
	applicationService *services.ApplicationService
	storageService     *services.StorageService
}

func NewApplicationHandler(applicationService *services.ApplicationService, storageService *services.StorageService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
		storageService:     storageService,
	}
}

// POST /student/applications
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	studentID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	application, err := h.applicationService.SubmitApplication(studentID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationSubmitted),
		"application": application,
	})
}

// GET /applications/:id
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	application, err := h.applicationService.GetApplication(userID, applicationID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"application": application,
	})
}

// DELETE /student/applications/:id
func (h *ApplicationHandler) WithdrawApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	studentID, ok := requireUserID(c)
	if !ok {
		return
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.applicationService.WithdrawApplication(studentID, applicationID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyApplicationWithdrawn),
	})
}

// POST /professor/applications/:id/approve
func (h *ApplicationHandler) ApproveApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	application, err := h.applicationService.ApproveApplication(professorID, applicationID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationApproved),
		"application": application,
	})
}

// POST /professor/applications/:id/reject
func (h *ApplicationHandler) RejectApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	application, err := h.applicationService.RejectApplication(professorID, applicationID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationRejected),
		"application": application,
	})
}

// POST /professor/applications/:id/unapprove
func (h *ApplicationHandler) UnapproveApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	professorID, ok := requireUserID(c)
	if !ok {
		return
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UnapproveApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	application, err := h.applicationService.UnapproveApplication(c.Request.Context(), professorID, applicationID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationUnapproved),
		"application": application,
	})
}

// GET /student/applications
func (h *ApplicationHandler) ListMyApplications(c *gin.Context) {
	studentID, ok := requireUserID(c)
	if !ok {
		return
	}

	search, ok := buildApplicationSearchParams(c)
	if !ok {
		return
	}

	applications, total, err := h.applicationService.ListStudentApplications(studentID, search)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(applications, total, search.PaginationParams)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponse(c, result)
}

// POST /student/applications/:id/signed-request
func (h *ApplicationHandler) UploadSignedRequest(c *gin.Context) {
	studentID, ok := requireUserID(c)
	if !ok {
		return
	}

	h.uploadApplicationFile(c, "signed_request", func(applicationID uint, fileKey string) (*models.Application, error) {
		return h.applicationService.SetSignedRequestFile(c.Request.Context(), studentID, applicationID, fileKey)
	})
}

// POST /professor/applications/:id/response-file
func (h *ApplicationHandler) UploadResponseFile(c *gin.Context) {
	professorID, ok := requireUserID(c)
	if !ok {
		return
	}

	h.uploadApplicationFile(c, "response_file", func(applicationID uint, fileKey string) (*models.Application, error) {
		return h.applicationService.SetResponseFile(c.Request.Context(), professorID, applicationID, fileKey)
	})
}

// uploadApplicationFile stores the uploaded PDF and attaches its key to the
// application. The upload happens before the ownership and status checks run,
// so a rejected attach removes the freshly stored object again.
func (h *ApplicationHandler) uploadApplicationFile(c *gin.Context, category string, attach func(applicationID uint, fileKey string) (*models.Application, error)) {
	lang := utils.GetLangFromContext(c)

	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}
	defer file.Close()

	if err := h.storageService.ValidatePDF(file); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileInvalidType), err.Error())
		return
	}

	options := h.storageService.GetDefaultUploadOptions(category)
	result, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.InternalErrorResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed))
		return
	}

	application, err := attach(applicationID, result.Key)
	if err != nil {
		if cleanupErr := h.storageService.DeleteFile(c.Request.Context(), result.Key); cleanupErr != nil {
			logrus.WithError(cleanupErr).WithField("file_key", result.Key).Warn("Failed to remove orphaned upload")
		}
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyFileUploadSuccess),
		"application": application,
		"file": gin.H{
			"url":       result.URL,
			"key":       result.Key,
			"size":      result.Size,
			"mime_type": result.MimeType,
		},
	})
}

func buildApplicationSearchParams(c *gin.Context) (*services.ApplicationSearchParams, bool) {
	params := utils.GetPaginationParams(c)
	search := &services.ApplicationSearchParams{PaginationParams: params}

	if params.Status != "" {
		status := models.ApplicationStatus(params.Status)
		if status != models.ApplicationStatusPending &&
			status != models.ApplicationStatusApproved &&
			status != models.ApplicationStatusRejected {
			utils.BadRequestResponse(c, "Invalid status filter", nil)
			return nil, false
		}
		search.Status = &status
	}

	return search, true
}
