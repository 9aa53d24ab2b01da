package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

const areaScale = 4

var mm2PerM2 = decimal.NewFromInt(1_000_000)

// Area 面积类型（平方米，保留 4 位小数）
type Area struct {
	decimal.Decimal
}

// NewAreaFromDecimal 从 decimal 创建面积
func NewAreaFromDecimal(v decimal.Decimal) Area {
	return Area{Decimal: v.Round(areaScale)}
}

// PaneArea 计算玻璃面积：宽 × 高 × 数量 / 1e6
func PaneArea(widthMM, heightMM, quantity int) Area {
	if widthMM <= 0 || heightMM <= 0 || quantity <= 0 {
		return Area{Decimal: decimal.Zero}
	}
	v := decimal.NewFromInt(int64(widthMM)).
		Mul(decimal.NewFromInt(int64(heightMM))).
		Div(mm2PerM2).
		Round(areaScale).
		Mul(decimal.NewFromInt(int64(quantity)))
	return NewAreaFromDecimal(v)
}

// Add 面积求和
func (a Area) Add(other Area) Area {
	return NewAreaFromDecimal(a.Decimal.Add(other.Decimal))
}

// MarshalJSON 统一输出 4 位小数的字符串
func (a Area) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON 解析面积（字符串或数字）
func (a *Area) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		a.Decimal = d.Round(areaScale)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	a.Decimal = decimal.NewFromFloat(f).Round(areaScale)
	return nil
}

// Value 用于数据库写入
func (a Area) Value() (driver.Value, error) {
	return a.Decimal.Round(areaScale).Value()
}

// Scan 用于数据库读取
func (a *Area) Scan(value interface{}) error {
	if err := a.Decimal.Scan(value); err != nil {
		return err
	}
	a.Decimal = a.Decimal.Round(areaScale)
	return nil
}

// String 返回 4 位小数格式
func (a Area) String() string {
	return a.Decimal.Round(areaScale).StringFixed(areaScale)
}
