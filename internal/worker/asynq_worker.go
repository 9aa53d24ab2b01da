package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/provider"
	"github.com/glassline/internal/queue"
	"github.com/glassline/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskGlassRematch, c.handleGlassRematch)
}

func (c *Consumer) handleGlassRematch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_glass_rematch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseGlassRematchPayload(task)
	if err != nil {
		logger.Warnw("worker_glass_rematch_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if len(payload.OrderNumbers) == 0 {
		logger.Debugw("worker_glass_rematch_skip_invalid_payload",
			"job_type", payload.JobType,
			"glass_order_id", payload.GlassOrderID,
			"glass_delivery_id", payload.GlassDeliveryID,
		)
		return nil
	}
	if c.GlassRematchService == nil {
		logger.Warnw("worker_glass_rematch_skip_service_nil", "order_numbers", payload.OrderNumbers)
		return nil
	}

	result, err := c.GlassRematchService.RematchUnmatchedForOrders(ctx, payload.OrderNumbers)
	if err != nil {
		if errors.Is(err, service.ErrRematchInvalid) {
			logger.Debugw("worker_glass_rematch_skip_invalid", "order_numbers", payload.OrderNumbers)
			return nil
		}
		// 交给 asynq 按 MaxRetry 重试，最终失败由 ErrorHandler 记录
		kv := []interface{}{
			"job_type", payload.JobType,
			"glass_order_id", payload.GlassOrderID,
			"glass_delivery_id", payload.GlassDeliveryID,
			"order_numbers", payload.OrderNumbers,
			"retryable", service.IsRetryableMatchingError(err),
			"error", err,
		}
		if service.IsRetryableMatchingError(err) {
			logger.Warnw("worker_glass_rematch_retry", kv...)
		} else {
			logger.Errorw("worker_glass_rematch_failed", kv...)
		}
		return err
	}
	logger.Infow("worker_glass_rematch_done",
		"job_type", payload.JobType,
		"source", payload.Source,
		"order_numbers", payload.OrderNumbers,
		"rematched", result.Rematched,
		"conflict", result.Conflict,
		"still_unmatched", result.StillUnmatched,
	)
	return nil
}
