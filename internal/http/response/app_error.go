package response

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// AppError 接口错误：业务码、消息 key 与原始错误
type AppError struct {
	Code    int
	Key     string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Key + ": " + e.Message
	}
	return e.Key + ": " + e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, key, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Key:     key,
		Message: message,
		Err:     err,
	}
}

// Fail 写出错误响应，并把错误挂到 gin 上下文供请求日志使用
func Fail(c *gin.Context, appErr *AppError, data interface{}) {
	if appErr == nil {
		return
	}
	_ = c.Error(appErr)
	ErrorWithData(c, appErr.Code, appErr.Message, data)
}

// AppErrorFromContext 取出请求中记录的第一个 AppError
func AppErrorFromContext(c *gin.Context) *AppError {
	if c == nil {
		return nil
	}
	for _, ginErr := range c.Errors {
		var appErr *AppError
		if errors.As(ginErr.Err, &appErr) {
			return appErr
		}
	}
	return nil
}
