package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var roles = map[string]struct{}{"student": {}, "teacher": {}, "coordinator": {}}

// RegisterValidators 给 gin 的校验器加自定义 tag，错误里用 json 字段名
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return registerOn(v)
}

func registerOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := roles[fl.Field().String()]
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidRole 给 query 参数用
func ValidRole(r string) bool {
	_, ok := roles[r]
	return ok
}
