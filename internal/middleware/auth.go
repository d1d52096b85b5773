package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/like-Ocean/AI-Classes/internal/config"
	"github.com/like-Ocean/AI-Classes/internal/util"
	"github.com/like-Ocean/AI-Classes/pkg/logger"
	"go.uber.org/zap"
)

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

// AuthMiddleware requires a valid bearer token and stores its claims
// under util.ContextUserKey.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil || claims.UserID == 0 {
			logger.Log.Debug("rejected token",
				zap.String("path", c.FullPath()),
				zap.String("requestId", c.GetString(util.ContextRequestIDKey)),
				zap.Error(err),
			)
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextUserKey, claims)
		c.Set(util.ContextConfigKey, cfg)
		c.Next()
	}
}
