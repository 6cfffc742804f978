package global

import (
	"net/http"

	"ProjectHub/logger"
	"ProjectHub/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 0,
		Msg:  "ok",
		Data: data,
	}
}

// OK writes a 200 envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Success(data))
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Success(data))
}

// Fail 把任意错误翻译成信封；非 CodeError 一律 500，细节只进日志
func Fail(c *gin.Context, err error) {
	ce, ok := errs.Code(err)
	if !ok {
		logger.Error("[HTTP] unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		ce = errs.ErrInternal
		c.AbortWithStatusJSON(ce.Status, &Msg{Code: ce.Code, Msg: ce.Msg})
		return
	}
	if ce.Status >= http.StatusInternalServerError {
		logger.Error("[HTTP] server error", zap.String("path", c.FullPath()), zap.Error(err))
	}
	msg := ce.Msg
	if ce.Detail != "" {
		msg = ce.Msg + ": " + ce.Detail
	}
	status := ce.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, &Msg{Code: ce.Code, Msg: msg})
}
