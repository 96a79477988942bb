// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

func identityProbe(c *gin.Context) {
	userID, _ := c.Get("user_id")
	role, _ := c.Get("user_role")
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role})
}

func doProbe(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test-secret")

	r := gin.New()
	r.GET("/probe", AuthRequired(), identityProbe)

	t.Run("missing header", func(t *testing.T) {
		w := doProbe(r, http.MethodGet, "/probe", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := doProbe(r, http.MethodGet, "/probe", map[string]string{"Authorization": "Token abc"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := doProbe(r, http.MethodGet, "/probe", bearer("not.a.token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := utils.GenerateJWT(12, "Probe User", "student", 1)
		require.NoError(t, err)

		w := doProbe(r, http.MethodGet, "/probe", bearer(token))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":12`)
		assert.Contains(t, w.Body.String(), `"role":"student"`)
	})
}

func TestRoleRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test-secret")

	professorToken, err := utils.GenerateJWT(1, "Prof", "professor", 1)
	require.NoError(t, err)
	studentToken, err := utils.GenerateJWT(2, "Student", "student", 1)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/professor", AuthRequired(), ProfessorRequired(), identityProbe)
	r.GET("/student", AuthRequired(), StudentRequired(), identityProbe)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"professor on professor route", "/professor", professorToken, http.StatusOK},
		{"student on professor route", "/professor", studentToken, http.StatusForbidden},
		{"student on student route", "/student", studentToken, http.StatusOK},
		{"professor on student route", "/student", professorToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doProbe(r, http.MethodGet, tt.path, bearer(tt.token))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMaintenanceAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("disabled when no token configured", func(t *testing.T) {
		r := gin.New()
		r.POST("/cleanup", MaintenanceAuth(""), identityProbe)

		w := doProbe(r, http.MethodPost, "/cleanup", map[string]string{"X-Maintenance-Token": "anything"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	r := gin.New()
	r.POST("/cleanup", MaintenanceAuth("ops-secret"), identityProbe)

	t.Run("missing token", func(t *testing.T) {
		w := doProbe(r, http.MethodPost, "/cleanup", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		w := doProbe(r, http.MethodPost, "/cleanup", map[string]string{"X-Maintenance-Token": "guess"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("matching token", func(t *testing.T) {
		w := doProbe(r, http.MethodPost, "/cleanup", map[string]string{"X-Maintenance-Token": "ops-secret"})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test-secret")

	r := gin.New()
	r.GET("/probe", OptionalAuth(), identityProbe)

	t.Run("anonymous passes through", func(t *testing.T) {
		w := doProbe(r, http.MethodGet, "/probe", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":null`)
	})

	t.Run("broken token stays anonymous", func(t *testing.T) {
		w := doProbe(r, http.MethodGet, "/probe", bearer("not.a.token"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":null`)
	})

	t.Run("valid token sets identity", func(t *testing.T) {
		token, err := utils.GenerateJWT(5, "Visitor", "student", 1)
		require.NoError(t, err)

		w := doProbe(r, http.MethodGet, "/probe", bearer(token))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":5`)
	})
}
