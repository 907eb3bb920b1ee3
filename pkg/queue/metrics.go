package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskID 任务ID的类型别名
type TaskID string

// MetricOperation 定义指标操作类型
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpProcess MetricOperation = "process"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// LatencySnapshot 延迟统计快照
type LatencySnapshot struct {
	Count int64 `json:"count"`
	AvgMs int64 `json:"avg_ms"`
	MinMs int64 `json:"min_ms"`
	MaxMs int64 `json:"max_ms"`
}

// QueueMetrics 队列性能指标收集器
type QueueMetrics struct {
	pushed    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	errors    sync.Map // map[MetricOperation]*atomic.Int64

	// 延迟统计
	pushLatency    LatencyStats
	popLatency     LatencyStats
	processLatency LatencyStats

	// 等待时间计算
	avgWaitTime   atomic.Int64 // 平均等待时间(毫秒)
	waited        atomic.Int64
	waitTimeStart sync.Map // map[TaskID]time.Time
}

// MetricsSnapshot 指标快照，用于健康检查
type MetricsSnapshot struct {
	Pushed         int64            `json:"pushed"`
	Processed      int64            `json:"processed"`
	Failed         int64            `json:"failed"`
	Errors         map[string]int64 `json:"errors"`
	AvgWaitMs      int64            `json:"avg_wait_ms"`
	PushLatency    LatencySnapshot  `json:"push_latency"`
	PopLatency     LatencySnapshot  `json:"pop_latency"`
	ProcessLatency LatencySnapshot  `json:"process_latency"`
}

// NewQueueMetrics 创建新的指标收集器
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{}
}

// RecordSuccess 记录成功操作
func (m *QueueMetrics) RecordSuccess(op MetricOperation) {
	switch op {
	case OpPush:
		m.pushed.Add(1)
	case OpProcess:
		m.processed.Add(1)
	}
}

// RecordError 记录失败操作
func (m *QueueMetrics) RecordError(op MetricOperation) {
	if op == OpProcess {
		m.failed.Add(1)
	}
	counter, _ := m.errors.LoadOrStore(op, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1)
}

// StartWaitTime 记录任务开始等待的时间
func (m *QueueMetrics) StartWaitTime(taskID TaskID) {
	m.waitTimeStart.Store(taskID, time.Now())
}

// EndWaitTime 计算并更新平均等待时间
// 入队和出队在不同进程时找不到开始时间，跳过
func (m *QueueMetrics) EndWaitTime(taskID TaskID) {
	startTime, ok := m.waitTimeStart.LoadAndDelete(taskID)
	if !ok {
		return
	}
	waitMs := time.Since(startTime.(time.Time)).Milliseconds()

	n := m.waited.Add(1)
	for {
		currentAvg := m.avgWaitTime.Load()
		newAvg := currentAvg + (waitMs-currentAvg)/n
		if m.avgWaitTime.CompareAndSwap(currentAvg, newAvg) {
			return
		}
	}
}

// RecordPushLatency 记录推送延迟
func (m *QueueMetrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordPopLatency 记录获取延迟
func (m *QueueMetrics) RecordPopLatency(d time.Duration) {
	m.popLatency.record(d)
}

// RecordProcessLatency 记录处理延迟
func (m *QueueMetrics) RecordProcessLatency(d time.Duration) {
	m.processLatency.record(d)
}

// Snapshot 当前指标
func (m *QueueMetrics) Snapshot() MetricsSnapshot {
	errs := make(map[string]int64)
	m.errors.Range(func(key, value any) bool {
		errs[string(key.(MetricOperation))] = value.(*atomic.Int64).Load()
		return true
	})
	return MetricsSnapshot{
		Pushed:         m.pushed.Load(),
		Processed:      m.processed.Load(),
		Failed:         m.failed.Load(),
		Errors:         errs,
		AvgWaitMs:      m.avgWaitTime.Load(),
		PushLatency:    m.pushLatency.snapshot(),
		PopLatency:     m.popLatency.snapshot(),
		ProcessLatency: m.processLatency.snapshot(),
	}
}

// record 记录延迟数据
func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := LatencySnapshot{
		Count: s.count,
		MinMs: s.min.Milliseconds(),
		MaxMs: s.max.Milliseconds(),
	}
	if s.count > 0 {
		snap.AvgMs = (s.total / time.Duration(s.count)).Milliseconds()
	}
	return snap
}
