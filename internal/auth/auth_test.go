package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	j := NewJWTHandler("0123456789abcdef0123456789abcdef", time.Minute)

	token, err := j.GenerateAccessToken("bench-1", RoleOperator)
	require.NoError(t, err)

	claims, err := j.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bench-1", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)

	_, err = NewJWTHandler("another-secret-another-secret-xx", time.Minute).ValidateAccessToken(token)
	assert.Error(t, err)

	_, err = j.GenerateAccessToken("x", Role("root"))
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	j := NewJWTHandler("0123456789abcdef0123456789abcdef", time.Minute)
	j.accessTokenTTL = -time.Minute

	token, err := j.GenerateAccessToken("bench-1", RoleAdmin)
	require.NoError(t, err)
	_, err = j.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestRoleOrder(t *testing.T) {
	assert.True(t, RoleAdmin.Allows(RoleOperator))
	assert.True(t, RoleOperator.Allows(RoleOperator))
	assert.False(t, RoleViewer.Allows(RoleOperator))
	assert.False(t, Role("").Allows(RoleViewer))

	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := NewJWTHandler("0123456789abcdef0123456789abcdef", time.Minute)

	router := gin.New()
	router.POST("/write", Middleware(j), RequireRole(RoleOperator), func(c *gin.Context) {
		c.String(http.StatusOK, SubjectFrom(c))
	})

	viewer, err := j.GenerateAccessToken("display", RoleViewer)
	require.NoError(t, err)
	operator, err := j.GenerateAccessToken("bench-1", RoleOperator)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"role too low", "Bearer " + viewer, http.StatusForbidden},
		{"operator", "Bearer " + operator, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/write", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "bench-1", w.Body.String())
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/write", Middleware(nil), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
