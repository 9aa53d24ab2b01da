package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/models"

	"gorm.io/datatypes"
)

// MatchDecision 单块到货玻璃的匹配结论
type MatchDecision struct {
	Status    string
	Candidate *models.GlassOrderItem
}

// MatchDeliveredPane 为到货玻璃寻找订购明细
// 优先级：后缀与尺寸一致 > 尺寸一致但后缀不同（冲突） > 未匹配；同级按候选顺序取第一个
func MatchDeliveredPane(pane models.GlassDeliveryItem, candidates []models.GlassOrderItem) MatchDecision {
	for i := range candidates {
		candidate := &candidates[i]
		if !sameDimensions(pane, candidate) {
			continue
		}
		if sameSuffix(pane.OrderSuffix, candidate.OrderSuffix) {
			return MatchDecision{Status: constants.MatchStatusMatched, Candidate: candidate}
		}
	}
	for i := range candidates {
		candidate := &candidates[i]
		if sameDimensions(pane, candidate) {
			return MatchDecision{Status: constants.MatchStatusConflict, Candidate: candidate}
		}
	}
	return MatchDecision{Status: constants.MatchStatusUnmatched}
}

func sameDimensions(pane models.GlassDeliveryItem, candidate *models.GlassOrderItem) bool {
	return candidate.OrderNumber == pane.OrderNumber &&
		candidate.WidthMM == pane.WidthMM &&
		candidate.HeightMM == pane.HeightMM
}

func sameSuffix(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// countsTowardDelivery 匹配与冲突均计入到货数量
func countsTowardDelivery(matchStatus string) bool {
	return matchStatus == constants.MatchStatusMatched || matchStatus == constants.MatchStatusConflict
}

// groupCandidatesByOrderNumber 按生产订单号分组候选明细，保持原有顺序
func groupCandidatesByOrderNumber(items []models.GlassOrderItem) map[string][]models.GlassOrderItem {
	groups := make(map[string][]models.GlassOrderItem)
	for _, item := range items {
		groups[item.OrderNumber] = append(groups[item.OrderNumber], item)
	}
	return groups
}

// normalizeSuffix 空白后缀视为无后缀
func normalizeSuffix(raw string) *string {
	suffix := strings.TrimSpace(raw)
	if suffix == "" {
		return nil
	}
	return &suffix
}

func suffixText(suffix *string) string {
	if suffix == nil {
		return ""
	}
	return *suffix
}

func paneLabel(orderNumber string, suffix *string) string {
	if suffix == nil {
		return orderNumber
	}
	return orderNumber + "-" + *suffix
}

func dimensionKey(widthMM, heightMM int) string {
	return fmt.Sprintf("%dx%d", widthMM, heightMM)
}

func detailsJSON(details map[string]interface{}) datatypes.JSON {
	body, err := json.Marshal(details)
	if err != nil {
		logger.Warnw("glass_issue_details_marshal_failed", "details", fmt.Sprintf("%v", details), "error", err)
		return nil
	}
	return datatypes.JSON(body)
}

func newSuffixMismatchIssue(pane models.GlassDeliveryItem, candidate *models.GlassOrderItem) models.GlassOrderValidation {
	glassOrderID := candidate.GlassOrderID
	deliveryID := pane.GlassDeliveryID
	itemID := pane.ID
	ordered := candidate.Quantity
	delivered := pane.Quantity
	return models.GlassOrderValidation{
		GlassOrderID:        &glassOrderID,
		GlassDeliveryID:     &deliveryID,
		GlassDeliveryItemID: &itemID,
		OrderNumber:         pane.OrderNumber,
		ValidationType:      constants.ValidationTypeSuffixMismatch,
		Severity:            constants.SeverityWarning,
		Message: fmt.Sprintf("Suffix mismatch for order %s (%s): ordered '%s', delivered '%s'",
			pane.OrderNumber, dimensionKey(pane.WidthMM, pane.HeightMM),
			suffixText(candidate.OrderSuffix), suffixText(pane.OrderSuffix)),
		Details: detailsJSON(map[string]interface{}{
			"dimensions":       dimensionKey(pane.WidthMM, pane.HeightMM),
			"ordered_suffix":   candidate.OrderSuffix,
			"delivered_suffix": pane.OrderSuffix,
			"delivery_item_id": pane.ID,
			"order_item_id":    candidate.ID,
			"position":         pane.Position,
		}),
		OrderedQuantity:   &ordered,
		DeliveredQuantity: &delivered,
	}
}

func newUnmatchedDeliveryIssue(pane models.GlassDeliveryItem) models.GlassOrderValidation {
	deliveryID := pane.GlassDeliveryID
	itemID := pane.ID
	delivered := pane.Quantity
	return models.GlassOrderValidation{
		GlassDeliveryID:     &deliveryID,
		GlassDeliveryItemID: &itemID,
		OrderNumber:         pane.OrderNumber,
		ValidationType:      constants.ValidationTypeUnmatchedDelivery,
		Severity:            constants.SeverityError,
		Message: fmt.Sprintf("No ordered glass found for delivered %s (%s)",
			paneLabel(pane.OrderNumber, pane.OrderSuffix), dimensionKey(pane.WidthMM, pane.HeightMM)),
		Details: detailsJSON(map[string]interface{}{
			"dimensions":       dimensionKey(pane.WidthMM, pane.HeightMM),
			"order_suffix":     pane.OrderSuffix,
			"delivery_item_id": pane.ID,
			"position":         pane.Position,
			"serial_number":    pane.SerialNumber,
		}),
		DeliveredQuantity: &delivered,
	}
}

func newMissingProductionOrderIssue(orderNumber string, glassOrderID uint, quantity int) models.GlassOrderValidation {
	id := glassOrderID
	ordered := quantity
	return models.GlassOrderValidation{
		GlassOrderID:    &id,
		OrderNumber:     orderNumber,
		ValidationType:  constants.ValidationTypeMissingProductionOrder,
		Severity:        constants.SeverityWarning,
		Message:         fmt.Sprintf("Production order %s not found, glass counters not updated", orderNumber),
		Details:         detailsJSON(map[string]interface{}{"quantity": quantity}),
		OrderedQuantity: &ordered,
	}
}
