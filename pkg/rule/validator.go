// Package rule 封装 go-playground/validator，统一使用 rule 标签，并与 gin 的绑定校验共用同一引擎.
package rule

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagName 校验规则所在的结构体标签.
const TagName = "rule"

var (
	inst *validator.Validate
	once sync.Once

	tagPattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}_\-. ]{0,63}$`)
)

// initValidator 复用 gin 的 validator 引擎，使 ShouldBind 同样按 rule 标签校验.
func initValidator() {
	if engine := binding.Validator.Engine(); engine != nil {
		if v, ok := engine.(*validator.Validate); ok {
			inst = v
		}
	}

	if inst == nil {
		inst = validator.New()
	}

	inst.SetTagName(TagName)
	inst.RegisterTagNameFunc(fieldName)

	_ = inst.RegisterValidation("image_mime", func(fl validator.FieldLevel) bool {
		return IsImageMIME(fl.Field().String())
	})
	_ = inst.RegisterValidation("photo_tag", func(fl validator.FieldLevel) bool {
		return tagPattern.MatchString(fl.Field().String())
	})
}

// fieldName 依次取 form、json、mapstructure 标签作为错误中的字段名.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"form", "json", "mapstructure"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}

		if name != "" {
			return name
		}
	}

	return f.Name
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 注册自定义规则.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidateStruct 对结构体执行完整校验，返回原始 error.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 按规则对单个变量校验，例如: ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias 注册别名规则.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}

// FirstError 返回第一个未通过的字段名与规则名，err 不是校验错误时 ok 为 false.
func FirstError(err error) (field, tag string, ok bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "", "", false
	}

	return ve[0].Field(), ve[0].Tag(), true
}

// IsImageMIME 判断 content type 是否为 image/*，忽略大小写与参数.
func IsImageMIME(ct string) bool {
	base, _, _ := strings.Cut(ct, ";")

	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(base)), "image/")
}
