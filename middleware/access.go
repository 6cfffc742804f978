package middleware

import (
	"net/http"
	"strings"
	"time"

	"ProjectHub/global"
	"ProjectHub/logger"
	"ProjectHub/tools/errs"
	"ProjectHub/tools/ids"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// AccessLog 记录每个请求；挂在 engine.Use 上，需要包住后续链
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("rid", c.Writer.Header().Get(HeaderRequestID)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("[HTTP]", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("[HTTP]", fields...)
		default:
			logger.Info("[HTTP]", fields...)
		}
	}
}

// Recovery panic 转成 500 信封
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[HTTP] panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.Error(errs.ErrPanic(r)),
					zap.Stack("stack"))
				global.Fail(c, errs.ErrInternal)
			}
		}()
		c.Next()
	}
}

// RequestID 前置中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" || len(rid) > 64 {
			rid = ids.UUID()
		}
		c.Header(HeaderRequestID, rid)
	}
}

// CORS 前置中间件；origins 含 "*" 时放行全部
func CORS(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := allowed[strings.TrimRight(origin, "/")]
			if allowAll || ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization,Content-Type,"+HeaderRequestID)
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}
