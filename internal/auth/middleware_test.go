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

func newTestRouter(signer *Signer, perm string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{RequireBearer(signer)}
	if perm != "" {
		handlers = append(handlers, RequirePerm(perm))
	}
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/protected", handlers...)
	return r
}

func TestRequireBearer_RejectsMissingHeader(t *testing.T) {
	signer := NewSigner("k")
	r := newTestRouter(signer, "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireBearer_AcceptsValidToken(t *testing.T) {
	signer := NewSigner("k")
	tok, err := signer.Issue(1, "aud", nil, nil, time.Hour)
	require.NoError(t, err)

	r := newTestRouter(signer, "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePerm_RejectsMissingPermission(t *testing.T) {
	signer := NewSigner("k")
	tok, err := signer.Issue(1, "aud", []string{PermCanCreateCharge}, nil, time.Hour)
	require.NoError(t, err)

	r := newTestRouter(signer, PermCanOnboardMerchant)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
