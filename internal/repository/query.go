package repository

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// maxPageSize 单页上限，导入批次可能包含上千块玻璃
const maxPageSize = 500

// findPage 统计总数后按排序分页查询；pageSize <= 0 时返回全部
func findPage[T any](query *gorm.DB, page, pageSize int, order string) ([]T, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}
	rows := make([]T, 0)
	if total == 0 {
		return rows, 0, nil
	}
	if err := query.Order(order).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// withinDateRange 按闭区间过滤时间列
func withinDateRange(query *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where(column+" >= ?", *from)
	}
	if to != nil {
		query = query.Where(column+" <= ?", *to)
	}
	return query
}

func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// detailsFieldCondition 校验问题 details JSON 中某个键的等值条件
func detailsFieldCondition(db *gorm.DB, key string) string {
	return jsonTextExprByDialect(dbDialectName(db), "details", key) + " = ?"
}

func jsonTextExprByDialect(dialect, column, key string) string {
	if isPostgres(dialect) {
		return fmt.Sprintf("(%s::jsonb ->> '%s')", column, key)
	}
	return fmt.Sprintf("json_extract(%s, '$.\"%s\"')", column, key)
}

// containsCondition 模糊匹配批次号、供应商、货架号等文本列，postgres 下不区分大小写
func containsCondition(db *gorm.DB, column, keyword string) (string, string) {
	return fmt.Sprintf("%s %s ?", column, likeOperatorByDialect(dbDialectName(db))), "%" + keyword + "%"
}

func likeOperatorByDialect(dialect string) string {
	if isPostgres(dialect) {
		return "ILIKE"
	}
	return "LIKE"
}

func isPostgres(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return true
	}
	return false
}
