package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"civiceye/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	// ContextUserID and ContextRole carry the authenticated identity
	// resolved by the auth collaborator into handlers.
	ContextUserID = "user_id"
	ContextRole   = "role"
)

var authClient = &http.Client{Timeout: 10 * time.Second}

// Auth resolves (user_id, role) for every request. Internal services pass
// X-User-ID/X-User-Role headers; browser clients pass a Bearer token which is
// validated against the external auth service. Unauthenticated requests
// continue with no identity so public endpoints keep working; admin routes
// reject them in RequireAdmin.
func Auth(authServiceURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if internalID := c.GetHeader("X-User-ID"); internalID != "" {
			c.Set(ContextUserID, internalID)
			c.Set(ContextRole, c.GetHeader("X-User-Role"))
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(ContextUserID, "")
			c.Set(ContextRole, "")
			c.Next()
			return
		}

		token := extractToken(authHeader)
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization format"})
			c.Abort()
			return
		}

		userID, role, err := validateToken(token, authServiceURL)
		if err != nil {
			log.Warnf("Token validation failed from %s: %v", c.ClientIP(), err)
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireAdmin rejects callers whose resolved role is not admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if models.Role(c.GetString(ContextRole)) != models.RoleAdmin {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: models.ErrForbidden.Error()})
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func validateToken(token, authServiceURL string) (string, string, error) {
	payload, _ := json.Marshal(map[string]string{"token": token})

	resp, err := authClient.Post(authServiceURL+"/validate-token", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"user_id"`
		Role   string `json:"role"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	if !result.Valid {
		return "", "", errors.New("invalid token")
	}
	return result.UserID, result.Role, nil
}
