package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tarotshare/pkg/logger"
	"tarotshare/pkg/mailer"
)

// ShareHandler 处理一次分享，mailer.Sharer 实现了它
type ShareHandler interface {
	Share(ctx context.Context, req mailer.ShareRequest) (*mailer.Message, error)
}

// Worker 队列工作器
type Worker struct {
	queue    TaskQueue
	handler  ShareHandler
	stopChan chan struct{}
	metrics  *QueueMetrics // 性能指标
	wg       sync.WaitGroup
	config   WorkerConfig
	stopOnce sync.Once
}

// WorkerConfig 工作器配置
type WorkerConfig struct {
	WorkerCount     int           // 并发工作器数量
	MaxRetries      int           // 最大重试次数
	RetryInterval   time.Duration // 重试间隔
	PopWait         time.Duration // 单次等待任务的时间，决定响应停止信号的速度
	TaskTimeout     time.Duration // 单个任务的超时时间
	ShutdownTimeout time.Duration // 关闭超时时间
}

// NewWorker 创建新的工作器组
func NewWorker(q TaskQueue, handler ShareHandler, metrics *QueueMetrics, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 2
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 2 * time.Second
	}
	if config.PopWait <= 0 {
		config.PopWait = 2 * time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 60 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}

	return &Worker{
		queue:    q,
		handler:  handler,
		stopChan: make(chan struct{}),
		metrics:  metrics,
		config:   config,
	}
}

// Start 启动工作器组
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.startWorker(i)
	}
}

// startWorker 启动单个工作器
func (w *Worker) startWorker(id int) {
	defer w.wg.Done()

	logger.InfoString("Worker", "Start", fmt.Sprintf("Worker %d started", id))

	for {
		select {
		case <-w.stopChan:
			logger.InfoString("Worker", "Stop", fmt.Sprintf("Worker %d stopping", id))
			return
		default:
			if err := w.processNextTask(); err != nil {
				logger.ErrorString("Worker", "Error", fmt.Sprintf("Worker %d error: %v", id, err))
				// 错误恢复延迟，停止信号到达时立即退出
				select {
				case <-w.stopChan:
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// processNextTask 取一个任务并处理，队列为空时直接返回
func (w *Worker) processNextTask() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.PopWait+5*time.Second)
	task, err := w.queue.PopTask(ctx, w.config.PopWait)
	cancel()
	if err != nil {
		return fmt.Errorf("pop task error: %w", err)
	}
	if task == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		w.metrics.RecordProcessLatency(time.Since(start))
	}()
	return w.handleTask(task)
}

// handleTask 处理单个任务，失败时按配置重试，不可恢复的错误直接标记失败
func (w *Worker) handleTask(task *ShareTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.TaskTimeout)
	defer cancel()

	if err := w.queue.UpdateTaskStatus(ctx, task, TaskRunning, ""); err != nil {
		return fmt.Errorf("update task status error: %w", err)
	}

	req := mailer.ShareRequest{
		ReadingID:  task.ReadingID,
		To:         task.To,
		FriendName: task.FriendName,
		Note:       task.Note,
	}

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(w.config.RetryInterval):
			}
			if ctx.Err() != nil {
				break
			}
		}

		task.Attempts++
		_, lastErr = w.handler.Share(ctx, req)
		if lastErr == nil || mailer.Permanent(lastErr) {
			break
		}
		logger.WarnString("Worker", "Retry", fmt.Sprintf("任务 %s 第 %d 次发送失败: %v", task.ID, task.Attempts, lastErr))
	}

	if lastErr != nil {
		w.metrics.RecordError(OpProcess)
		if updateErr := w.queue.UpdateTaskStatus(ctx, task, TaskFailed, lastErr.Error()); updateErr != nil {
			logger.ErrorString("Worker", "UpdateStatus", updateErr.Error())
		}
		return fmt.Errorf("process task %s error: %w", task.ID, lastErr)
	}

	if err := w.queue.UpdateTaskStatus(ctx, task, TaskCompleted, ""); err != nil {
		return fmt.Errorf("update task result error: %w", err)
	}
	w.metrics.RecordSuccess(OpProcess)
	logger.InfoString("Worker", "Done", fmt.Sprintf("任务 %s 已完成，解读 %s", task.ID, task.ReadingID))
	return nil
}

// Stop 优雅关闭工作器组
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})

	// 等待所有工作器完成
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Worker", "Stop", "All workers stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Worker", "Stop", "Worker shutdown timed out")
	}
}
