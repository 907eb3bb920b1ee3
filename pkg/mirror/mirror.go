// Package mirror 本地镜像：保存在服务所在主机上的解读副本
//
// 所有解读序列化为一个 JSON 对象（id -> 解读）保存在同一个键下。远程存储不可用时它是唯一的存储，
// 可用时作为写穿透的备份。超出容量上限后按 created_at 从旧到新淘汰。
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/logger"
)

// DefaultCapacity 默认容量上限
const DefaultCapacity = 100

var (
	// ErrQuotaExceeded 底层存储空间不足
	ErrQuotaExceeded = errors.New("mirror storage quota exceeded")
	// ErrCorrupt 存储内容无法解析
	ErrCorrupt = errors.New("mirror data is corrupt")
)

// PersistError 写入本地镜像失败
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("mirror %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Mirror 本地镜像
type Mirror struct {
	kv       KV
	key      string
	capacity int
	now      func() time.Time
	mu       sync.Mutex
}

// Option 本地镜像选项
type Option func(*Mirror)

// WithCapacity 设置容量上限，小于等于 0 表示不限制
func WithCapacity(n int) Option {
	return func(m *Mirror) {
		m.capacity = n
	}
}

// WithClock 设置时钟，测试中用来模拟过期
func WithClock(now func() time.Time) Option {
	return func(m *Mirror) {
		m.now = now
	}
}

// New 创建本地镜像
func New(kv KV, key string, opts ...Option) *Mirror {
	m := &Mirror{
		kv:       kv,
		key:      key,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Put 按 id 写入或覆盖一条解读
func (m *Mirror) Put(r *reading.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadLocked()
	if err != nil {
		return &PersistError{Op: "put", Err: err}
	}
	all[r.ID] = r.Clone()
	m.trimLocked(all)
	return m.saveLocked("put", all)
}

// Get 读取解读，不存在或已过期时返回 nil
func (m *Mirror) Get(id string) *reading.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadLocked()
	if err != nil {
		logger.ErrorString("Mirror", "Get", err.Error())
		return nil
	}
	r, ok := all[id]
	if !ok || r.IsExpiredAt(m.now()) {
		return nil
	}
	return r
}

// IncrementView 查看次数加一，解读不存在或已过期时返回 false
func (m *Mirror) IncrementView(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadLocked()
	if err != nil {
		logger.WarnString("Mirror", "IncrementView", err.Error())
		return false
	}
	r, ok := all[id]
	if !ok || r.IsExpiredAt(m.now()) {
		return false
	}
	r.ViewCount++
	if err := m.saveLocked("increment view", all); err != nil {
		logger.WarnString("Mirror", "IncrementView", err.Error())
		return false
	}
	return true
}

// SweepExpired 删除所有已过期的解读，返回删除数量
func (m *Mirror) SweepExpired() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadLocked()
	if err != nil {
		return 0, &PersistError{Op: "sweep", Err: err}
	}
	now := m.now()
	removed := 0
	for id, r := range all {
		if r.IsExpiredAt(now) {
			delete(all, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := m.saveLocked("sweep", all); err != nil {
		return 0, err
	}
	logger.InfoString("Mirror", "SweepExpired", fmt.Sprintf("清理了 %d 条过期解读", removed))
	return removed, nil
}

// All 返回全部解读（包括已过期的），按创建时间从新到旧排序
// 仅用于统计和导出
func (m *Mirror) All() []*reading.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadLocked()
	if err != nil {
		logger.ErrorString("Mirror", "All", err.Error())
	}
	list := make([]*reading.Reading, 0, len(all))
	for _, r := range all {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// Clear 清空本地镜像
func (m *Mirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.kv.Remove(m.key); err != nil {
		return &PersistError{Op: "clear", Err: err}
	}
	return nil
}

// Export 导出全部数据，格式与存储格式相同
func (m *Mirror) Export() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadLocked()
	if err != nil {
		return nil, &PersistError{Op: "export", Err: err}
	}
	return json.MarshalIndent(all, "", "  ")
}

// Import 用导入的数据替换本地镜像，返回导入的条数
// 任意一条记录不合法时整体拒绝
func (m *Mirror) Import(data []byte) (int, error) {
	var imported map[string]*reading.Reading
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for id, r := range imported {
		if r == nil || r.ID != id {
			return 0, fmt.Errorf("%w: entry %q does not match its key", ErrCorrupt, id)
		}
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("%w: entry %q: %v", ErrCorrupt, id, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.trimLocked(imported)
	if err := m.saveLocked("import", imported); err != nil {
		return 0, err
	}
	return len(imported), nil
}

// loadLocked 读取全部数据
// 内容无法解析时按空处理，下一次写入会覆盖损坏的数据；底层读取失败时返回错误
func (m *Mirror) loadLocked() (map[string]*reading.Reading, error) {
	all := make(map[string]*reading.Reading)

	raw, err := m.kv.Load(m.key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		logger.ErrorString("Mirror", "Load", fmt.Errorf("%w: %v", ErrCorrupt, err).Error())
		return make(map[string]*reading.Reading), nil
	}
	for id, r := range all {
		if r == nil {
			delete(all, id)
		}
	}
	return all, nil
}

func (m *Mirror) saveLocked(op string, all map[string]*reading.Reading) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return &PersistError{Op: op, Err: err}
	}
	if err := m.kv.Store(m.key, raw); err != nil {
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

// trimLocked 超出容量时按 created_at 淘汰最旧的记录
func (m *Mirror) trimLocked(all map[string]*reading.Reading) {
	if m.capacity <= 0 || len(all) <= m.capacity {
		return
	}

	list := make([]*reading.Reading, 0, len(all))
	for _, r := range all {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	excess := len(all) - m.capacity
	for _, r := range list[:excess] {
		delete(all, r.ID)
	}
	logger.DebugString("Mirror", "Trim", fmt.Sprintf("超出容量 %d，淘汰 %d 条最旧的解读", m.capacity, excess))
}
