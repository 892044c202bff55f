package delivery

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"mailtask-backend/internal/apperr"
)

// AuthMiddleware validates a Bearer token signed with the shared HMAC
// secret and stashes the caller's identity in the request context.
// Tokens are issued by the tenant's identity service; this backend
// only verifies them.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		userID, tenantID, err := parseIdentity(parts[1], jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("tenantID", tenantID)
		c.Next()
	}
}

func parseIdentity(tokenString, jwtSecret string) (userID, tenantID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.KindAuth, "unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", apperr.New(apperr.KindAuth, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", apperr.New(apperr.KindAuth, "invalid token claims")
	}

	userID, ok = claims["user_id"].(string)
	if !ok || userID == "" {
		return "", "", apperr.New(apperr.KindAuth, "invalid token claims")
	}
	tenantID, ok = claims["tenant_id"].(string)
	if !ok || tenantID == "" {
		return "", "", apperr.New(apperr.KindAuth, "invalid token claims")
	}
	return userID, tenantID, nil
}
