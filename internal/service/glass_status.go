package service

import "github.com/glassline/internal/constants"

// CalcGlassOrderStatus 根据已订购与已到货数量计算生产订单玻璃履约状态
func CalcGlassOrderStatus(ordered, delivered int) string {
	if ordered <= 0 {
		if delivered > 0 {
			return constants.GlassStatusOverDelivered
		}
		return constants.GlassStatusNotOrdered
	}
	switch {
	case delivered <= 0:
		return constants.GlassStatusOrdered
	case delivered < ordered:
		return constants.GlassStatusPartiallyDelivered
	case delivered == ordered:
		return constants.GlassStatusDelivered
	default:
		return constants.GlassStatusOverDelivered
	}
}

// calcGlassBatchStatus 计算采购批次状态，已取消的批次保持不变
func calcGlassBatchStatus(current string, ordered, delivered int) string {
	if current == constants.GlassOrderStatusCancelled {
		return current
	}
	switch {
	case delivered <= 0:
		return constants.GlassOrderStatusOrdered
	case delivered < ordered:
		return constants.GlassOrderStatusPartiallyDelivered
	default:
		return constants.GlassOrderStatusDelivered
	}
}

// calcDiscrepancyStatus 计算单个尺寸的到货差异状态
func calcDiscrepancyStatus(ordered, delivered int) string {
	switch {
	case delivered > ordered:
		return constants.DiscrepancyExcess
	case delivered <= 0:
		return constants.DiscrepancyMissing
	case delivered < ordered:
		return constants.DiscrepancyPartial
	default:
		return constants.DiscrepancyComplete
	}
}
