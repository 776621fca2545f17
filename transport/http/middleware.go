package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/service"
)

// Stable machine-readable rejection codes. Clients branch on these,
// never on the human-readable message.
const (
	CodeTokenMissing       = "TOKEN_MISSING"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeDeviceUnauthorized = "DEVICE_UNAUTHORIZED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeAuthError          = "AUTH_ERROR"
)

const (
	headerRefreshToken    = "X-Refresh-Token"
	headerDeviceInfo      = "X-Device-Info"
	headerNewAccessToken  = "New-Access-Token"
	headerNewRefreshToken = "New-Refresh-Token"

	contextSubjectKey = "authSubject"
)

// RequestGate authenticates requests and transparently renews expired
// access tokens. On renewal the fresh pair is surfaced through the
// New-Access-Token / New-Refresh-Token response headers; clients adopt
// them for subsequent requests. The gate keeps no state between
// requests.
func RequestGate(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			reject(c, http.StatusUnauthorized, "Access token required", CodeTokenMissing)
			return
		}

		device := deviceFromRequest(c)

		v := sessions.Verify(c.Request.Context(), token, device)
		if v.State == core.StateExpired {
			refreshToken := c.GetHeader(headerRefreshToken)
			if refreshToken == "" {
				reject(c, http.StatusUnauthorized, "Token expired", CodeTokenExpired)
				return
			}

			pair, err := sessions.Renew(c.Request.Context(), refreshToken, device, false)
			if err != nil {
				if errors.Is(err, core.ErrStoreFailure) {
					reject(c, http.StatusBadGateway, "Authentication backend unavailable", CodeAuthError)
					return
				}
				reject(c, http.StatusUnauthorized, "Session expired. Please sign in again.", CodeSessionExpired)
				return
			}

			c.Header(headerNewAccessToken, pair.AccessToken)
			c.Header(headerNewRefreshToken, pair.RefreshToken)

			v = sessions.Verify(c.Request.Context(), pair.AccessToken, device)
		}

		switch v.State {
		case core.StateValid:
			c.Set(contextSubjectKey, v.Subject)
			c.Next()
		case core.StateExpired:
			reject(c, http.StatusUnauthorized, "Token expired", CodeTokenExpired)
		case core.StateUnknownDevice:
			reject(c, http.StatusForbidden, "Unknown device or session expired", CodeDeviceUnauthorized)
		case core.StateInvalid:
			if errors.Is(v.Err, core.ErrDeviceInfoMissing) {
				reject(c, http.StatusForbidden, "Device information missing", CodeDeviceUnauthorized)
				return
			}
			reject(c, http.StatusForbidden, "Invalid token", CodeTokenInvalid)
		default:
			reject(c, http.StatusBadGateway, "Authentication backend unavailable", CodeAuthError)
		}
	}
}

// Subject returns the authenticated principal id set by RequestGate.
func Subject(c *gin.Context) (string, bool) {
	subject, ok := c.Get(contextSubjectKey)
	if !ok {
		return "", false
	}
	s, ok := subject.(string)
	return s, ok
}

// extractToken strips the Bearer prefix when present; a bare token
// value is accepted as-is.
func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return authHeader
}

// deviceFromRequest reads the device descriptor from the X-Device-Info
// header, falling back to a device_info field in a JSON body. The body
// is restored so handlers can bind it again.
func deviceFromRequest(c *gin.Context) core.DeviceInfo {
	if raw := c.GetHeader(headerDeviceInfo); raw != "" {
		var device core.DeviceInfo
		if err := json.Unmarshal([]byte(raw), &device); err == nil {
			return device
		}
	}

	if c.Request.Body == nil {
		return core.DeviceInfo{}
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return core.DeviceInfo{}
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		DeviceInfo core.DeviceInfo `json:"device_info"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return core.DeviceInfo{}
	}
	return body.DeviceInfo
}

func reject(c *gin.Context, status int, msg, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
