package utils

import (
	"fmt"
	"strings"
	"sync"

	"fundus-go/internal/intake"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// InitValidator 初始化验证器，同时注册到 gin 的绑定验证器
func InitValidator() {
	validateOnce.Do(func() {
		validate = validator.New()
		registerFundusTags(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerFundusTags(v)
		}
	})
}

func registerFundusTags(v *validator.Validate) {
	// 注册自定义验证函数
	_ = v.RegisterValidation("fundus_left", fundusName(intake.SideLeft))
	_ = v.RegisterValidation("fundus_right", fundusName(intake.SideRight))
}

// GetValidator 获取验证器实例
func GetValidator() *validator.Validate {
	InitValidator()
	return validate
}

// fundusName 文件名须为 {编号}_{left|right}.{jpg|jpeg|png}
func fundusName(side intake.Side) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return intake.Validate(fl.Field().String(), side)
	}
}

// ValidateFilename 校验单个上传文件名，在读取文件内容之前调用
func ValidateFilename(name string, side intake.Side) error {
	if err := GetValidator().Var(name, "required,fundus_"+string(side)); err != nil {
		return &intake.BatchError{Side: side, File: name, Err: intake.ErrInvalidFilename}
	}
	return nil
}

// BindingMessage gin 绑定失败时返回给调用方的提示
func BindingMessage(err error) string {
	return formatValidationError(err).Error()
}

// formatValidationError 格式化验证错误
func formatValidationError(err error) error {
	var errors []string

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			param := e.Param()

			var message string
			switch tag {
			case "required":
				message = fmt.Sprintf("%s是必填字段", field)
			case "oneof":
				message = fmt.Sprintf("%s必须是以下之一: %s", field, param)
			case "fundus_left":
				message = fmt.Sprintf("%s必须形如 0_left.jpg", field)
			case "fundus_right":
				message = fmt.Sprintf("%s必须形如 0_right.jpg", field)
			default:
				message = fmt.Sprintf("%s验证失败: %s", field, tag)
			}

			errors = append(errors, message)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return err
}
