package middleware

import (
	"errors"
	"net/http"
	"strings"

	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/jwt"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	secret string
	log    logger.Logger
}

func NewAuthMiddleware(secret string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
		log:    log,
	}
}

// RequireControlToken пропускает только запросы хоста с токеном управления.
// Для WebSocket токен можно передать в query-параметре token.
func (m *AuthMiddleware) RequireControlToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := jwt.ValidateControlToken(token, m.secret)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, apperrors.ErrTokenExpired) {
				msg = "Token expired"
			}
			m.log.Warn("Rejected control request", "path", c.Request.URL.Path, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			c.Abort()
			return
		}

		c.Set("control_subject", claims.Subject)
		c.Next()
	}
}
