// internal/handlers/params.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

// parseIDParam reads a numeric path parameter. On failure it writes the 400
// response itself and returns ok=false.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || value == 0 {
		utils.BadRequestResponse(c, "Invalid "+name+" parameter", nil)
		return 0, false
	}
	return uint(value), true
}

// requireUserID reads the authenticated user from the context. Routes behind
// AuthRequired always have it; a miss means the middleware chain is wrong.
func requireUserID(c *gin.Context) (uint, bool) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return 0, false
	}
	return userID, true
}
