package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := testConfig()
	user := &models.User{Role: models.RoleDoctor}
	user.ID = "user-1"

	access, refresh, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := ValidateToken(access, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleDoctor, claims.Role)

	_, err = ValidateToken(access, cfg.JWTRefreshSecret)
	assert.Error(t, err)

	_, err = ValidateToken(refresh, cfg.JWTRefreshSecret)
	assert.NoError(t, err)
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	cfg := testConfig()
	user := &models.User{Role: models.RolePatient}
	user.ID = "user-2"

	_, first, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	_, second, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidCCCD(t *testing.T) {
	assert.True(t, ValidCCCD("123456789"))
	assert.True(t, ValidCCCD("012345678901"))
	assert.False(t, ValidCCCD("1234567890"))
	assert.False(t, ValidCCCD("12345678a"))
	assert.False(t, ValidCCCD(""))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("doctor: %w", ErrNotFound), http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("book: %w", ErrSlotUnavailable), http.StatusConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict},
		{ErrInvalidTransition, http.StatusBadRequest},
		{ErrInsufficientStock, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestHandleErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Len(t, c.Errors, 1)
}

func TestHandleErrorSlotUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, ErrSlotUnavailable)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "slot no longer available")
}
