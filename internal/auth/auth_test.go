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

func newSigner() *Signer {
	return NewSigner("club-attendance", "secret", time.Minute, time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	s := newSigner()
	pair, err := s.Issue("admin", RoleAdmin)
	require.NoError(t, err)

	claims, err := s.Parse(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = s.Parse(pair.AccessToken, KindRefresh)
	assert.Error(t, err, "access token must not be accepted as refresh token")

	_, err = s.Parse(pair.RefreshToken, KindRefresh)
	assert.NoError(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	pair, err := NewSigner("other", "secret", time.Minute, time.Hour).Issue("x", RoleAdmin)
	require.NoError(t, err)
	_, err = newSigner().Parse(pair.AccessToken, KindAccess)
	assert.Error(t, err)

	pair, err = NewSigner("club-attendance", "different", time.Minute, time.Hour).Issue("x", RoleAdmin)
	require.NoError(t, err)
	_, err = newSigner().Parse(pair.AccessToken, KindAccess)
	assert.Error(t, err)
}

func TestAdminCredentials(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	creds := NewAdminCredentials("admin", hash)

	assert.NoError(t, creds.Verify("admin", "hunter2"))
	assert.ErrorIs(t, creds.Verify("admin", "wrong"), ErrBadCredentials)
	assert.ErrorIs(t, creds.Verify("root", "hunter2"), ErrBadCredentials)
	assert.ErrorIs(t, NewAdminCredentials("admin", "").Verify("admin", "hunter2"), ErrLoginDisabled)
}

func TestBearerAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newSigner()
	r := gin.New()
	r.GET("/admin", Bearer(s), RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	admin, err := s.Issue("admin", RoleAdmin)
	require.NoError(t, err)
	student, err := s.Issue("s1", "student")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + admin.RefreshToken, http.StatusUnauthorized},
		{"wrong role", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"admin", "Bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}
