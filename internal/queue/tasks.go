package queue

import (
	"encoding/json"

	"github.com/glassline/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskGlassRematch 未匹配到货玻璃重新匹配任务
	TaskGlassRematch = constants.TaskGlassRematch
)

// GlassRematchPayload 重新匹配任务载荷
type GlassRematchPayload struct {
	JobType         string   `json:"job_type"`
	GlassOrderID    uint     `json:"glass_order_id,omitempty"`
	GlassDeliveryID uint     `json:"glass_delivery_id,omitempty"`
	OrderNumbers    []string `json:"order_numbers"`
	Source          string   `json:"source,omitempty"`
}

// NewGlassRematchTask 创建重新匹配任务
func NewGlassRematchTask(payload GlassRematchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGlassRematch, body), nil
}

// ParseGlassRematchPayload 解析重新匹配任务载荷
func ParseGlassRematchPayload(task *asynq.Task) (GlassRematchPayload, error) {
	var payload GlassRematchPayload
	if task == nil {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
