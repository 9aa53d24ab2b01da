package glass

import (
	"github.com/glassline/internal/constants"
	handlershared "github.com/glassline/internal/http/handlers/shared"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/service"

	"github.com/gin-gonic/gin"
)

// RematchRequest 手动触发重新匹配
type RematchRequest struct {
	OrderNumbers []string `json:"order_numbers" binding:"required"`
}

// Rematch 为指定生产订单调度重新匹配
func (h *Handler) Rematch(c *gin.Context) {
	var req RematchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	jobID, err := h.RematchDispatcher.ScheduleRematch(c.Request.Context(), service.RematchRequest{
		JobType:      constants.MatchingJobOrderRematch,
		Priority:     constants.MatchingPriorityHigh,
		OrderNumbers: req.OrderNumbers,
		Source:       constants.RematchSourceAPI,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassReadErrorRules, response.CodeInternal, "error.internal")
		return
	}
	response.Success(c, gin.H{"job_id": jobID})
}

// requireMatchingQueue asynq 模式下没有进程内队列
func (h *Handler) requireMatchingQueue(c *gin.Context) bool {
	if h.MatchingQueue == nil {
		respondError(c, response.CodeServiceUnavailable, "error.queue_unavailable", nil)
		return false
	}
	return true
}

// GetQueueStats 匹配队列统计
func (h *Handler) GetQueueStats(c *gin.Context) {
	if !h.requireMatchingQueue(c) {
		return
	}
	response.Success(c, h.MatchingQueue.Stats())
}

// GetQueueJobs 匹配队列任务（等待、重试、失败）
func (h *Handler) GetQueueJobs(c *gin.Context) {
	if !h.requireMatchingQueue(c) {
		return
	}
	response.Success(c, gin.H{
		"pending":  h.MatchingQueue.PendingJobs(),
		"retrying": h.MatchingQueue.RetryJobs(),
		"failed":   h.MatchingQueue.FailedJobs(),
	})
}

// PauseQueue 暂停匹配队列
func (h *Handler) PauseQueue(c *gin.Context) {
	if !h.requireMatchingQueue(c) {
		return
	}
	h.MatchingQueue.Pause()
	requestLog(c).Infow("matching_queue_paused_by_operator")
	response.Success(c, h.MatchingQueue.Stats())
}

// ResumeQueue 恢复匹配队列
func (h *Handler) ResumeQueue(c *gin.Context) {
	if !h.requireMatchingQueue(c) {
		return
	}
	h.MatchingQueue.Resume()
	requestLog(c).Infow("matching_queue_resumed_by_operator")
	response.Success(c, h.MatchingQueue.Stats())
}

// ClearQueue 清空等待中的匹配任务
func (h *Handler) ClearQueue(c *gin.Context) {
	if !h.requireMatchingQueue(c) {
		return
	}
	cleared := h.MatchingQueue.Clear()
	requestLog(c).Warnw("matching_queue_cleared_by_operator", "cleared", cleared)
	response.Success(c, gin.H{"cleared": cleared})
}
