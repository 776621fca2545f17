package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/service"
)

// SessionHandlers contains the HTTP handlers for the session endpoints.
type SessionHandlers struct {
	sessions *service.SessionService
}

// NewSessionHandlers creates the handler set.
func NewSessionHandlers(sessions *service.SessionService) *SessionHandlers {
	return &SessionHandlers{sessions: sessions}
}

// Issue mints a token pair for a principal authenticated upstream and
// records the device in its history.
func (h *SessionHandlers) Issue(c *gin.Context) {
	var req struct {
		UserID     string          `json:"user_id" binding:"required"`
		DeviceInfo core.DeviceInfo `json:"device_info"`
		RememberMe bool            `json:"remember_me"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeTokenInvalid})
		return
	}

	pair, err := h.sessions.Issue(c.Request.Context(), req.UserID, req.DeviceInfo, req.RememberMe)
	if err != nil {
		status, msg, code := mapIssueError(err)
		c.JSON(status, gin.H{"error": msg, "code": code})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Renew exchanges a refresh token for a fresh token pair.
func (h *SessionHandlers) Renew(c *gin.Context) {
	var req struct {
		RefreshToken string          `json:"refresh_token" binding:"required"`
		DeviceInfo   core.DeviceInfo `json:"device_info"`
		RememberMe   bool            `json:"remember_me"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeTokenInvalid})
		return
	}

	pair, err := h.sessions.Renew(c.Request.Context(), req.RefreshToken, req.DeviceInfo, req.RememberMe)
	if err != nil {
		status, msg, code := mapRenewError(err)
		c.JSON(status, gin.H{"error": msg, "code": code})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// RenewRefresh rotates the refresh token without issuing a new access token.
func (h *SessionHandlers) RenewRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string          `json:"refresh_token" binding:"required"`
		DeviceInfo   core.DeviceInfo `json:"device_info"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeTokenInvalid})
		return
	}

	token, expiresIn, err := h.sessions.RenewRefreshOnly(c.Request.Context(), req.RefreshToken, req.DeviceInfo)
	if err != nil {
		status, msg, code := mapRenewError(err)
		c.JSON(status, gin.H{"error": msg, "code": code})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refresh_token": token,
		"expires_in":    expiresIn,
	})
}

// Me returns the authenticated principal id.
func (h *SessionHandlers) Me(c *gin.Context) {
	subject, ok := Subject(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Principal not found in context", "code": CodeAuthError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": subject})
}

// Authorize returns success when the gate admitted the request.
func (h *SessionHandlers) Authorize(c *gin.Context) {
	subject, ok := Subject(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Principal not found in context", "code": CodeAuthError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorized": true, "user_id": subject})
}

func mapIssueError(err error) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrInvalidSubject):
		return http.StatusBadRequest, "User id is required", CodeAuthError
	case errors.Is(err, core.ErrDeviceInfoMissing):
		return http.StatusBadRequest, "Device information missing", CodeDeviceUnauthorized
	case errors.Is(err, core.ErrStoreFailure):
		return http.StatusBadGateway, "Authentication backend unavailable", CodeAuthError
	default:
		return http.StatusInternalServerError, "Failed to create session", CodeAuthError
	}
}

func mapRenewError(err error) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrSessionRevoked):
		return http.StatusUnauthorized, "Session expired. Please sign in again.", CodeSessionExpired
	case errors.Is(err, core.ErrWrongTokenKind):
		return http.StatusForbidden, "Invalid token type - refresh token required", CodeTokenInvalid
	case errors.Is(err, core.ErrDeviceInfoMissing):
		return http.StatusForbidden, "Device information missing", CodeDeviceUnauthorized
	case errors.Is(err, core.ErrUnknownDevice):
		return http.StatusForbidden, "Unknown device or session expired", CodeDeviceUnauthorized
	case errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired", CodeTokenExpired
	case errors.Is(err, core.ErrTokenMalformed):
		return http.StatusBadRequest, "Invalid refresh token", CodeTokenInvalid
	case errors.Is(err, core.ErrStoreFailure):
		return http.StatusBadGateway, "Authentication backend unavailable", CodeAuthError
	default:
		return http.StatusInternalServerError, "Failed to renew tokens", CodeAuthError
	}
}
