package shared

import "github.com/gin-gonic/gin"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery 列表分页参数
type PageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Normalize 页码从 1 开始，page_size 缺省 20、上限 100
func (q PageQuery) Normalize() (int, int) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}

// ParsePagination 读取 page / page_size，非法值按缺省处理
func ParsePagination(c *gin.Context) (int, int) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		q = PageQuery{}
	}
	return q.Normalize()
}
