package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix  = "Bearer "
	userIDKey     = "user_id"
	anonymousUser = "anonymous"
)

// Claims is the JWT payload accepted in jwt mode.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Auth picks the middleware for cfg.AuthMode.
func Auth(cfg *config.Config) gin.HandlerFunc {
	switch {
	case cfg.IsGatewayMode():
		return GatewayAuth()
	case cfg.IsJWTMode():
		return JWTAuth(cfg.JWTSecret)
	}
	return NoAuth()
}

// NoAuth lets every request through as the anonymous user.
func NoAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, anonymousUser)
		c.Next()
	}
}

// GatewayAuth trusts the X-User-ID header set by an upstream gateway that
// already authenticated the caller. Only safe behind that gateway.
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication required",
				"message": "Missing X-User-ID header from gateway",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Set("user_email", c.GetHeader("X-User-Email"))
		c.Next()
	}
}

// JWTAuth validates an HMAC-signed bearer token.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, bearerPrefix), claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		c.Set(userIDKey, userID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// UserID returns the caller set by the auth middleware.
func UserID(c *gin.Context) string {
	if id := c.GetString(userIDKey); id != "" {
		return id
	}
	return anonymousUser
}
