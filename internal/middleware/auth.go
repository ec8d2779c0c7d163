package middleware

import (
	"errors"
	"net/http"
	"strings"

	"datatav/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyUsername = "username"
	ContextKeyRole     = "role"
)

// JWTAuthMiddleware 校验管理员 Bearer Token
func JWTAuthMiddleware(jwtService *service.JWTService) gin.HandlerFunc {
	if jwtService == nil {
		jwtService = service.NewJWTService()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Malformed Authorization header"})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "Token validation failed"
			if errors.Is(err, service.ErrExpiredToken) {
				msg = "Token expired"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			c.Abort()
			return
		}

		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

func GetUsername(c *gin.Context) string {
	username, _ := c.Get(ContextKeyUsername)
	if name, ok := username.(string); ok {
		return name
	}
	return ""
}
