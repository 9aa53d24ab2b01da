package queue

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/glassline/internal/config"
	"github.com/glassline/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// MatchingQueueName 重新匹配任务队列
	MatchingQueueName = constants.QueueMatching
)

const rematchTaskTimeout = 2 * time.Minute

// Client asynq 客户端；未启用时所有投递为空操作
type Client struct {
	client  *asynq.Client
	options []asynq.Option
}

// NewClient 创建队列客户端，maxRetry 与进程内匹配队列的重试次数一致
func NewClient(cfg *config.QueueConfig, maxRetry int) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	if maxRetry <= 0 {
		maxRetry = 3
	}
	return &Client{
		client: asynq.NewClient(buildRedisOpt(cfg)),
		options: []asynq.Option{
			asynq.Queue(MatchingQueueName),
			asynq.MaxRetry(maxRetry),
			asynq.Timeout(rematchTaskTimeout),
		},
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueGlassRematch 推送重新匹配任务
func (c *Client) EnqueueGlassRematch(payload GlassRematchPayload, delay time.Duration) (string, error) {
	if !c.Enabled() {
		return "", nil
	}
	task, err := NewGlassRematchTask(payload)
	if err != nil {
		return "", err
	}
	options := c.options
	if delay > 0 {
		options = append(options[:len(options):len(options)], asynq.ProcessIn(delay))
	}
	info, err := c.client.Enqueue(task, options...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig, retryDelay func(n int) time.Duration) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 1
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1, MatchingQueueName: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	serverCfg := asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
	if retryDelay != nil {
		serverCfg.RetryDelayFunc = func(n int, _ error, _ *asynq.Task) time.Duration {
			return retryDelay(n)
		}
	}
	return opt, serverCfg
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379", DialTimeout: 3 * time.Second}
	if cfg == nil {
		return opt
	}
	host, port := strings.TrimSpace(cfg.Host), cfg.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
