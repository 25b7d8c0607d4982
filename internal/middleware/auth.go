package middleware

import (
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RevocationChecker 查询访问令牌是否已注销
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AuthMiddleware 先查注销名单再校验签名，通过后写入 claims 与原始令牌
func AuthMiddleware(cfg config.JWTConfig, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		isRevoked, err := revoked.IsRevoked(c.Request.Context(), tokenString)
		if err != nil {
			util.LogInternalError(c, err)
			c.Abort()
			return
		}
		if isRevoked {
			util.Error(c, http.StatusUnauthorized, util.ErrAccessTokenRevoked.Error())
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.String("path", c.FullPath()), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextUserKey, claims)
		c.Set(util.ContextTokenKey, tokenString)
		c.Next()
	}
}

// RoleMiddleware 管理员直接放行
func RoleMiddleware(roles ...model.RoleTitle) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.RoleAdmin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerFromContext 由认证中间件写入的 claims 构造调用方身份
func CallerFromContext(c *gin.Context) (service.Caller, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return service.Caller{}, false
	}

	caller := service.Caller{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
		Token:  util.GetTokenFromContext(c),
	}
	if claims.ExpiresAt != nil {
		caller.ExpiresAt = claims.ExpiresAt.Time
	}
	return caller, true
}
