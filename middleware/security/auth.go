package security

import (
	"errors"
	"strings"

	"ProjectHub/global"
	"ProjectHub/tools/errs"
	jwtlib "ProjectHub/tools/security"

	"github.com/gin-gonic/gin"
)

// context key，后续模块统一用这两个 key 读取
const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

type Options struct {
	JWT         jwtlib.Options
	HeaderToken string // 默认 "Authorization"
	QueryToken  string // 为空则不从 query 读
}

func DefaultOptions(jwt jwtlib.Options) *Options {
	return &Options{JWT: jwt, HeaderToken: "Authorization"}
}

// Middleware 校验 Bearer token，把 sub/role 写进 context
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extract(c, opts)
		if token == "" {
			global.Fail(c, errs.ErrTokenInvalid.WrapMsg("missing token"))
			return
		}
		claims, err := jwtlib.Verify(opts.JWT, token)
		if err != nil {
			if errors.Is(err, jwtlib.ErrTokenExpired) {
				global.Fail(c, errs.ErrTokenExpired.Wrap())
				return
			}
			global.Fail(c, errs.ErrTokenInvalid.WrapMsg(err.Error()))
			return
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRoles 必须挂在 Middleware 之后
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		global.Fail(c, errs.ErrNoPermission.WrapMsg("role not allowed", "role", role))
	}
}

func extract(c *gin.Context, opts *Options) string {
	header := opts.HeaderToken
	if header == "" {
		header = "Authorization"
	}
	if authz := strings.TrimSpace(c.GetHeader(header)); authz != "" {
		// 兼容 Authorization: Bearer xxx
		if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			return strings.TrimSpace(authz[7:])
		}
		return authz
	}
	if opts.QueryToken != "" {
		return strings.TrimSpace(c.Query(opts.QueryToken))
	}
	return ""
}

func UserID(c *gin.Context) string { return c.GetString(CtxUserIDKey) }

func Role(c *gin.Context) string { return c.GetString(CtxRoleKey) }
