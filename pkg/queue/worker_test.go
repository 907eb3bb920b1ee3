package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tarotshare/pkg/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryQueue 内存队列，只用于测试工作器
type memoryQueue struct {
	mu      sync.Mutex
	pending []*ShareTask
	tasks   map[string]ShareTask
}

func newMemoryQueue(tasks ...*ShareTask) *memoryQueue {
	q := &memoryQueue{tasks: make(map[string]ShareTask)}
	for _, t := range tasks {
		t.Status = TaskPending
		q.pending = append(q.pending, t)
		q.tasks[t.ID] = *t
	}
	return q
}

func (q *memoryQueue) PopTask(ctx context.Context, wait time.Duration) (*ShareTask, error) {
	q.mu.Lock()
	if len(q.pending) > 0 {
		task := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		return task, nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
		return nil, nil
	}
}

func (q *memoryQueue) UpdateTaskStatus(_ context.Context, task *ShareTask, status TaskStatus, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task.Status = status
	task.Error = errMsg
	q.tasks[task.ID] = *task
	return nil
}

func (q *memoryQueue) get(id string) ShareTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks[id]
}

// scriptedHandler 按顺序返回预设的错误
type scriptedHandler struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (h *scriptedHandler) Share(_ context.Context, req mailer.ShareRequest) (*mailer.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = h.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &mailer.Message{To: req.To, ReadingID: req.ReadingID}, nil
}

func (h *scriptedHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		WorkerCount:     1,
		MaxRetries:      2,
		RetryInterval:   5 * time.Millisecond,
		PopWait:         10 * time.Millisecond,
		TaskTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}
}

func newTask(id string) *ShareTask {
	return &ShareTask{ID: id, ReadingID: "3f2504e0-4f89-41d3-9a0c-0305e82c3301", To: "friend@example.com"}
}

func TestWorker_HandleTask_Success(t *testing.T) {
	q := newMemoryQueue()
	h := &scriptedHandler{}
	metrics := NewQueueMetrics()
	w := NewWorker(q, h, metrics, testWorkerConfig())

	task := newTask("t1")
	require.NoError(t, w.handleTask(task))

	assert.Equal(t, TaskCompleted, q.get("t1").Status)
	assert.Equal(t, 1, q.get("t1").Attempts)
	assert.Equal(t, int64(1), metrics.Snapshot().Processed)
}

func TestWorker_HandleTask_RetryThenSuccess(t *testing.T) {
	q := newMemoryQueue()
	h := &scriptedHandler{errs: []error{errors.New("smtp unavailable"), nil}}
	w := NewWorker(q, h, nil, testWorkerConfig())

	task := newTask("t2")
	require.NoError(t, w.handleTask(task))

	assert.Equal(t, 2, h.count())
	assert.Equal(t, TaskCompleted, q.get("t2").Status)
	assert.Equal(t, 2, q.get("t2").Attempts)
}

func TestWorker_HandleTask_RetriesExhausted(t *testing.T) {
	q := newMemoryQueue()
	down := errors.New("smtp unavailable")
	h := &scriptedHandler{errs: []error{down, down, down, down}}
	metrics := NewQueueMetrics()
	w := NewWorker(q, h, metrics, testWorkerConfig())

	err := w.handleTask(newTask("t3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, down)

	assert.Equal(t, 3, h.count())
	got := q.get("t3")
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "smtp unavailable", got.Error)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.Errors[string(OpProcess)])
}

func TestWorker_HandleTask_PermanentNotRetried(t *testing.T) {
	q := newMemoryQueue()
	h := &scriptedHandler{errs: []error{mailer.ErrReadingNotFound}}
	w := NewWorker(q, h, nil, testWorkerConfig())

	err := w.handleTask(newTask("t4"))
	assert.ErrorIs(t, err, mailer.ErrReadingNotFound)
	assert.Equal(t, 1, h.count())
	assert.Equal(t, TaskFailed, q.get("t4").Status)
}

func TestWorker_StartStop(t *testing.T) {
	q := newMemoryQueue(newTask("a"), newTask("b"), newTask("c"))
	h := &scriptedHandler{}
	metrics := NewQueueMetrics()
	cfg := testWorkerConfig()
	cfg.WorkerCount = 2
	w := NewWorker(q, h, metrics, cfg)

	w.Start()
	assert.Eventually(t, func() bool {
		return metrics.Snapshot().Processed == 3
	}, 2*time.Second, 10*time.Millisecond)
	w.Stop()
	// 重复关闭不会 panic
	w.Stop()

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, TaskCompleted, q.get(id).Status)
	}
	assert.Equal(t, int64(3), metrics.Snapshot().ProcessLatency.Count)
}

func TestQueueMetrics_Snapshot(t *testing.T) {
	m := NewQueueMetrics()
	m.RecordPushLatency(10 * time.Millisecond)
	m.RecordPushLatency(30 * time.Millisecond)
	m.RecordPopLatency(5 * time.Millisecond)
	m.RecordSuccess(OpPush)
	m.RecordError(OpPop)

	// 未记录开始时间的任务被忽略
	m.EndWaitTime("unknown")

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Pushed)
	assert.Equal(t, int64(1), snap.Errors[string(OpPop)])
	assert.Equal(t, int64(2), snap.PushLatency.Count)
	assert.Equal(t, int64(20), snap.PushLatency.AvgMs)
	assert.Equal(t, int64(10), snap.PushLatency.MinMs)
	assert.Equal(t, int64(30), snap.PushLatency.MaxMs)
	assert.Equal(t, int64(1), snap.PopLatency.Count)
	assert.Equal(t, int64(0), snap.ProcessLatency.Count)
	assert.Equal(t, int64(0), snap.AvgWaitMs)
}
