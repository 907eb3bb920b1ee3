package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"tarotshare/pkg/redis"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ShareTask 邮件分享任务
type ShareTask struct {
	ID         string     `json:"id"`
	ReadingID  string     `json:"reading_id"`
	To         string     `json:"to"`
	FriendName string     `json:"friend_name,omitempty"`
	Note       string     `json:"note,omitempty"`
	Status     TaskStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TaskQueue 工作器使用的队列操作
type TaskQueue interface {
	PopTask(ctx context.Context, wait time.Duration) (*ShareTask, error)
	UpdateTaskStatus(ctx context.Context, task *ShareTask, status TaskStatus, errMsg string) error
}

// QueueConfig 队列配置
type QueueConfig struct {
	Prefix    string        // 键前缀
	Timeout   time.Duration // 任务记录保留时间
	RateLimit int           // 每秒入队数量
	RateBurst int
}

// QueueService Redis 队列服务
type QueueService struct {
	client      *redis.RedisClient
	prefix      string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

// NewQueueService 创建新的队列服务实例
func NewQueueService(client *redis.RedisClient, cfg QueueConfig) *QueueService {
	if cfg.Prefix == "" {
		cfg.Prefix = "tarotshare:queue"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 24 * time.Hour
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 12
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RateLimit
	}

	return &QueueService{
		client:      client,
		prefix:      cfg.Prefix,
		timeout:     cfg.Timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics:     NewQueueMetrics(),
	}
}

func (q *QueueService) listKey() string {
	return fmt.Sprintf("%s:tasks", q.prefix)
}

func (q *QueueService) taskKey(taskID string) string {
	return fmt.Sprintf("%s:task:%s", q.prefix, taskID)
}

// Metrics 队列指标
func (q *QueueService) Metrics() *QueueMetrics {
	return q.metrics
}

// PushTask 将任务推送到队列
// 支持限流和监控指标收集
func (q *QueueService) PushTask(ctx context.Context, task *ShareTask) error {
	// 应用限流
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	start := time.Now()
	defer func() {
		q.metrics.RecordPushLatency(time.Since(start))
	}()

	now := time.Now()
	task.Status = TaskPending
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	taskJSON, err := json.Marshal(task)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	// 入队和任务记录放在同一个事务里
	pipe := q.client.Client.TxPipeline()
	pipe.LPush(ctx, q.listKey(), taskJSON)
	pipe.Set(ctx, q.taskKey(task.ID), taskJSON, q.timeout)
	if _, err := pipe.Exec(ctx); err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to push task: %w", err)
	}

	q.metrics.StartWaitTime(TaskID(task.ID))
	q.metrics.RecordSuccess(OpPush)
	return nil
}

// PopTask 从队列中获取任务，等待 wait 后仍然没有任务时返回 nil, nil
func (q *QueueService) PopTask(ctx context.Context, wait time.Duration) (*ShareTask, error) {
	start := time.Now()
	result, err := q.client.Client.BRPop(ctx, wait, q.listKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to pop task from queue: %w", err)
	}
	q.metrics.RecordPopLatency(time.Since(start))

	if len(result) != 2 {
		return nil, fmt.Errorf("invalid result from queue")
	}

	var task ShareTask
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	q.metrics.EndWaitTime(TaskID(task.ID))
	return &task, nil
}

// UpdateTaskStatus 更新任务状态
func (q *QueueService) UpdateTaskStatus(ctx context.Context, task *ShareTask, status TaskStatus, errMsg string) error {
	task.Status = status
	task.Error = errMsg
	task.UpdatedAt = time.Now()

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := q.client.Client.Set(ctx, q.taskKey(task.ID), taskJSON, q.timeout).Err(); err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return nil
}

// GetTask 获取任务记录，不存在或已过期时返回 nil
func (q *QueueService) GetTask(ctx context.Context, taskID string) (*ShareTask, error) {
	raw, err := q.client.Client.Get(ctx, q.taskKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil // 任务不存在
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task ShareTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// GetTaskProgress 获取任务进度信息
func (q *QueueService) GetTaskProgress(ctx context.Context, taskID string) (*TaskProgress, error) {
	task, err := q.GetTask(ctx, taskID)
	if err != nil || task == nil {
		return nil, err
	}
	return task.Progress(), nil
}

// TaskProgress 任务进度信息
type TaskProgress struct {
	TaskID    string     `json:"task_id"`
	ReadingID string     `json:"reading_id"`
	Status    TaskStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Progress 对外展示的进度，不包含收件人
func (t *ShareTask) Progress() *TaskProgress {
	return &TaskProgress{
		TaskID:    t.ID,
		ReadingID: t.ReadingID,
		Status:    t.Status,
		Attempts:  t.Attempts,
		Error:     t.Error,
		UpdatedAt: t.UpdatedAt,
	}
}

// Ping 检查队列服务健康状态
func (q *QueueService) Ping(ctx context.Context) error {
	return q.client.Client.Ping(ctx).Err()
}
