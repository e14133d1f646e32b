package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	"github.com/xxxsen/coachrag/internal/pkg/jwt"
	"github.com/xxxsen/coachrag/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "user_role"
	ContextTierKey   = "user_tier"
)

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Debug("token rejected", zap.Error(err))
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID())
		c.Set(ContextRoleKey, claims.Role)
		c.Set(ContextTierKey, tierFromClaims(claims))
		c.Next()
	}
}

// RequireRole rejects callers whose token role is not listed.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		if _, ok := allowed[role]; !ok {
			response.Error(c, errcode.ErrForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Tier returns the caller's entitlement, free when unknown.
func Tier(c *gin.Context) model.AccessTier {
	if v, ok := c.Get(ContextTierKey); ok {
		if tier, ok := v.(model.AccessTier); ok {
			return tier
		}
	}
	return model.AccessTierFree
}

func tierFromClaims(claims *jwt.Claims) model.AccessTier {
	if claims.Role == jwt.RoleService {
		return model.AccessTierPro
	}
	tier, err := model.ParseAccessTier(claims.AppMetadata.SubscriptionTier)
	if err != nil {
		return model.AccessTierFree
	}
	return tier
}
