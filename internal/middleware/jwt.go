package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/jwt"
	"github.com/xxxsen/docqa/internal/pkg/response"
)

const ContextOwnerIDKey = "owner_id"

// JWTAuth accepts a bearer token and stores its owner id on the context.
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
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextOwnerIDKey, claims.Owner())
		c.Next()
	}
}

func OwnerID(c *gin.Context) string {
	v, ok := c.Get(ContextOwnerIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
