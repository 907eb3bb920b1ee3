// Package remote 远程存储适配层
//
// 远程存储保存解读的权威副本，并负责公开可见性规则：匿名查询只能返回 is_public = true 的记录。
// 目前有两个驱动：PostgREST（Supabase）和直连 PostgreSQL（app/repositories）。
package remote

import (
	"context"
	"sync/atomic"
	"time"

	"tarotshare/app/models/reading"
)

// Store 远程存储
type Store interface {
	// Configured 连接参数有效且客户端初始化成功，每次调用都重新判断
	Configured() bool

	// Insert 写入完整记录
	Insert(ctx context.Context, r *reading.Reading) error

	// SelectByID 只返回 is_public = true 的记录；没有可见记录时返回 nil, nil
	SelectByID(ctx context.Context, id string) (*reading.Reading, error)

	// UpdateViewCount 把查看次数写为 count，记录不存在时返回 false
	UpdateViewCount(ctx context.Context, id string, count int64) (bool, error)

	// SweepExpired 删除过期记录，返回删除数量
	SweepExpired(ctx context.Context) (int, error)

	// Stats 服务端聚合统计
	Stats(ctx context.Context) (*reading.Stats, error)
}

// Visibility 诊断探测的结果，只用于日志
type Visibility struct {
	ID        string     `json:"id"`
	IsPublic  *bool      `json:"is_public"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt *time.Time `json:"created_at"`
	SiteName  string     `json:"site_name"`
}

// Prober 支持诊断探测的远程存储
type Prober interface {
	// Probe 只查询最少的字段，确认记录是否存在；不存在返回 nil, nil
	Probe(ctx context.Context, id string) (*Visibility, error)
}

// Clearer 支持清空全部数据的远程存储，需要管理权限
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Deferred 延迟就绪的远程存储
// 客户端在后台初始化（如数据库连接需要重试），就绪前 Configured 返回 false，调用方降级到本地镜像
type Deferred struct {
	store atomic.Pointer[storeHolder]
}

type storeHolder struct {
	Store
}

// NewDeferred 创建一个尚未就绪的远程存储
func NewDeferred() *Deferred {
	return &Deferred{}
}

// Resolve 设置实际的远程存储
func (d *Deferred) Resolve(s Store) {
	d.store.Store(&storeHolder{Store: s})
}

func (d *Deferred) current() Store {
	if h := d.store.Load(); h != nil {
		return h.Store
	}
	return nil
}

func (d *Deferred) Configured() bool {
	s := d.current()
	return s != nil && s.Configured()
}

func (d *Deferred) Insert(ctx context.Context, r *reading.Reading) error {
	s := d.current()
	if s == nil {
		return ErrNotConfigured
	}
	return s.Insert(ctx, r)
}

func (d *Deferred) SelectByID(ctx context.Context, id string) (*reading.Reading, error) {
	s := d.current()
	if s == nil {
		return nil, ErrNotConfigured
	}
	return s.SelectByID(ctx, id)
}

func (d *Deferred) UpdateViewCount(ctx context.Context, id string, count int64) (bool, error) {
	s := d.current()
	if s == nil {
		return false, ErrNotConfigured
	}
	return s.UpdateViewCount(ctx, id, count)
}

func (d *Deferred) SweepExpired(ctx context.Context) (int, error) {
	s := d.current()
	if s == nil {
		return 0, ErrNotConfigured
	}
	return s.SweepExpired(ctx)
}

func (d *Deferred) Stats(ctx context.Context) (*reading.Stats, error) {
	s := d.current()
	if s == nil {
		return nil, ErrNotConfigured
	}
	return s.Stats(ctx)
}

// Probe 实际存储支持时才探测
func (d *Deferred) Probe(ctx context.Context, id string) (*Visibility, error) {
	p, ok := d.current().(Prober)
	if !ok {
		return nil, nil
	}
	return p.Probe(ctx, id)
}

// Clear 实际存储支持时才清空
func (d *Deferred) Clear(ctx context.Context) (int, error) {
	c, ok := d.current().(Clearer)
	if !ok {
		return 0, ErrNotConfigured
	}
	return c.Clear(ctx)
}
