package shared

import (
	"strconv"
	"strings"

	"github.com/glassline/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParseIDParam 解析路径中的正整数 ID，失败时直接写出错误响应。
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	raw, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || raw == 0 {
		RespondError(c, response.CodeBadRequest, "error.id_invalid", nil)
		return 0, false
	}
	return uint(raw), true
}

// QueryBool 解析可选布尔查询参数，缺省或非法时返回 nil
func QueryBool(c *gin.Context, name string) *bool {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}
