// internal/handlers/maintenance.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/thesisflow/thesisflow-backend/internal/i18n"
	"github.com/thesisflow/thesisflow-backend/internal/scheduler"
	"github.com/thesisflow/thesisflow-backend/internal/services"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

type MaintenanceHandler struct {
	cleanupService *services.CleanupService
	sched          *scheduler.Scheduler
}

func NewMaintenanceHandler(cleanupService *services.CleanupService, sched *scheduler.Scheduler) *MaintenanceHandler {
	return &MaintenanceHandler{
		cleanupService: cleanupService,
		sched:          sched,
	}
}

// POST /maintenance/cleanup
//
// Runs synchronously. If the scheduler is already mid-run the call joins
// that run and returns its summary instead of starting a second sweep.
func (h *MaintenanceHandler) TriggerCleanup(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	summary, err := h.cleanupService.RunCleanup(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyCleanupCompleted),
		"summary": summary,
	})
}

// GET /maintenance/cleanup/status
func (h *MaintenanceHandler) CleanupStatus(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{
		"scheduler": h.sched.Status(),
	})
}
