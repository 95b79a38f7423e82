package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/photovault/pkg/internal/types"
)

// Role 表示请求方的角色，数值越大权限越高。
type Role int

const (
	RoleUser Role = iota + 1
	RoleOperator
	RoleAdmin
)

// HeaderRole 网关注入的角色请求头.
const HeaderRole = "X-Role"

const roleKey = "role"

// String 返回角色的字符串表示。
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	case RoleUser:
		fallthrough
	default:
		return "user"
	}
}

// ParseRole 从字符串解析角色，未知值降级为 user。
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "operator", "ops":
		return RoleOperator
	default:
		return RoleUser
	}
}

// RoleMiddleware 解析 X-Role 并保存到 gin.Context，缺省为 user。
func RoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(roleKey, ParseRole(c.GetHeader(HeaderRole)))
		c.Next()
	}
}

// GetRole 返回当前请求角色。
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get(roleKey); ok {
		if r, ok := v.(Role); ok {
			return r
		}
	}

	return RoleUser
}

// RequireMinRole 要求最小角色，不满足则返回 403。
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, types.ErrorResponse{
				Error:   "forbidden",
				Message: "requires role " + minRole.String(),
			})

			return
		}

		c.Next()
	}
}
