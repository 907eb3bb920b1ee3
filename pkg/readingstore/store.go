// Package readingstore 解读的保存、查询和分享
//
// Store 同时持有远程存储和本地镜像。每次调用都重新判断远程存储是否可用，
// 可用时以远程为准并把本地镜像当作备份，不可用或调用失败时降级到本地镜像。
// 远程存储的错误只记录日志，不会从公开方法返回。
package readingstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/identity"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/mirror"
	"tarotshare/pkg/remote"

	"go.uber.org/zap"
)

const (
	// DefaultRetention 默认保留 30 天
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultRemoteTimeout 单次远程调用的默认超时
	DefaultRemoteTimeout = 5 * time.Second
	// DefaultSharePath 分享链接路径，已发出的链接依赖它
	DefaultSharePath = "/view-reading"
)

// Config 解读存储配置，由 bootstrap 从配置文件构建后注入
type Config struct {
	SiteName      string         // 写入每条解读的站点名称
	SiteOrigin    string         // 站点地址，如 https://asksian.com
	SharePath     string         // 分享链接路径
	Retention     time.Duration  // 保留时长
	RemoteTimeout time.Duration  // 远程调用超时，超时后降级
	Diagnostics   bool           // 公开查询未命中时探测记录是否存在
	Location      *time.Location // 统计「今日」使用的时区
}

// Store 解读存储
type Store struct {
	cfg    Config
	remote remote.Store
	mirror *mirror.Mirror
	ids    identity.Generator
	now    func() time.Time
}

// Option 解读存储选项
type Option func(*Store)

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator 设置 ID 生成器
func WithIDGenerator(g identity.Generator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// New 创建解读存储，创建时会先清理一次过期数据
// rs 为 nil 时只使用本地镜像
func New(cfg Config, rs remote.Store, m *mirror.Mirror, opts ...Option) *Store {
	if cfg.SharePath == "" {
		cfg.SharePath = DefaultSharePath
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Store{
		cfg:    cfg,
		remote: rs,
		mirror: m,
		ids:    identity.NewGenerator(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if n, err := s.CleanupExpired(context.Background()); err != nil {
		logger.WarnString("ReadingStore", "Cleanup", err.Error())
	} else if n > 0 {
		logger.InfoString("ReadingStore", "Cleanup", fmt.Sprintf("启动时清理了 %d 条过期解读", n))
	}
	return s
}

// RemoteReady 远程存储当前是否可用，false 表示处于降级模式
func (s *Store) RemoteReady() bool {
	return s.remote != nil && s.remote.Configured()
}

// remoteContext 远程调用的上下文
// 调用方放弃等待后远程调用仍然完成，只受超时限制
func (s *Store) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RemoteTimeout)
}

// Save 保存解读，返回分配的 id
// 远程写入失败时以本地镜像为主存储；只有本地镜像也写入失败时才返回错误
func (s *Store) Save(ctx context.Context, d Draft) (string, error) {
	d, err := d.normalize()
	if err != nil {
		return "", err
	}

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	isPublic := true
	if d.IsPublic != nil {
		isPublic = *d.IsPublic
	}
	r := &reading.Reading{
		ID:             s.ids.NewID(),
		SiteName:       s.cfg.SiteName,
		ReadingType:    d.ReadingType,
		Question:       d.Question,
		SpreadName:     d.SpreadName,
		Cards:          d.Cards,
		Interpretation: d.Interpretation,
		PersonalInfo:   d.PersonalInfo,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(s.cfg.Retention),
		IsPublic:       isPublic,
	}

	if s.RemoteReady() {
		rctx, cancel := s.remoteContext(ctx)
		err := s.remote.Insert(rctx, r)
		cancel()
		if err == nil {
			// 本地镜像只是备份，失败不影响结果
			if err := s.mirror.Put(r); err != nil {
				logger.WarnString("ReadingStore", "Save", "本地备份失败："+err.Error())
			}
			logger.DebugString("ReadingStore", "Save", fmt.Sprintf("解读 %s 已写入远程存储", r.ID))
			return r.ID, nil
		}
		s.logFallback("save", r.ID, err)
	} else {
		s.logUnavailable("save", r.ID)
	}

	if err := s.mirror.Put(r); err != nil {
		return "", newLocalPersistenceError("save", err)
	}
	logger.DebugString("ReadingStore", "Save", fmt.Sprintf("解读 %s 已写入本地镜像", r.ID))
	return r.ID, nil
}

// Get 查询解读，不存在、已过期或非公开时返回 nil
func (s *Store) Get(ctx context.Context, id string) (*reading.Reading, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	// 旧格式 id 不能作为远程表的主键，只在本地查找
	if identity.IsUUID(id) && s.RemoteReady() {
		r, found := s.getRemote(ctx, id)
		if found {
			if r.IsExpiredAt(s.now()) {
				return nil, nil
			}
			return r, nil
		}
	}
	return s.getLocal(id), nil
}

// getRemote 远程查询，只有查到可见记录时 found 为 true
func (s *Store) getRemote(ctx context.Context, id string) (*reading.Reading, bool) {
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	r, err := s.remote.SelectByID(rctx, id)
	if err != nil {
		s.logFallback("get", id, err)
		return nil, false
	}
	if r == nil || !r.IsPublic {
		s.probe(rctx, id)
		return nil, false
	}
	return r, true
}

// getLocal 本地查找，同样不返回非公开的解读
func (s *Store) getLocal(id string) *reading.Reading {
	r := s.mirror.Get(id)
	if r == nil || !r.IsPublic {
		return nil
	}
	return r
}

// probe 诊断：记录为什么公开查询没有命中，结果只写日志
func (s *Store) probe(ctx context.Context, id string) {
	if !s.cfg.Diagnostics {
		return
	}
	prober, ok := s.remote.(remote.Prober)
	if !ok {
		return
	}

	v, err := prober.Probe(ctx, id)
	switch {
	case err != nil:
		logger.Debug("ReadingStore", zap.String("probe", id), zap.String("class", string(remote.ClassOf(err))), zap.Error(err))
	case v == nil:
		logger.DebugString("ReadingStore", "Probe", fmt.Sprintf("远程存储中没有 %s，或被行级安全策略隐藏", id))
	default:
		logger.DebugJSON("ReadingStore", "Probe", v)
	}
}

// IncrementViewCount 查看次数加一，失败时只返回 false
// 远程的读-改-写不是原子的，并发查看时允许丢失计数
func (s *Store) IncrementViewCount(ctx context.Context, id string) bool {
	if validateID(id) != nil {
		return false
	}

	if identity.IsUUID(id) && s.RemoteReady() {
		if r, found := s.getRemote(ctx, id); found && !r.IsExpiredAt(s.now()) {
			rctx, cancel := s.remoteContext(ctx)
			ok, err := s.remote.UpdateViewCount(rctx, id, r.ViewCount+1)
			cancel()
			if err == nil && ok {
				// 同步本地备份，备份里没有这条记录时忽略
				s.mirror.IncrementView(id)
				return true
			}
			if err != nil {
				s.logFallback("increment view", id, err)
			}
		}
	}

	if s.getLocal(id) == nil {
		return false
	}
	return s.mirror.IncrementView(id)
}

// CleanupExpired 清理过期解读，返回删除数量
// 远程可用时交给服务端函数处理，失败或不可用时清理本地镜像
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	if s.RemoteReady() {
		rctx, cancel := s.remoteContext(ctx)
		n, err := s.remote.SweepExpired(rctx)
		cancel()
		if err == nil {
			// 本地备份里的过期记录顺带清掉，数量以远程为准
			if _, err := s.mirror.SweepExpired(); err != nil {
				logger.WarnString("ReadingStore", "Cleanup", "清理本地备份失败："+err.Error())
			}
			return n, nil
		}
		s.logFallback("cleanup", "", err)
	}

	n, err := s.mirror.SweepExpired()
	if err != nil {
		return 0, newLocalPersistenceError("cleanup", err)
	}
	return n, nil
}

// Stats 统计，优先使用远程服务端的聚合结果
func (s *Store) Stats(ctx context.Context) reading.Stats {
	if s.RemoteReady() {
		rctx, cancel := s.remoteContext(ctx)
		stats, err := s.remote.Stats(rctx)
		cancel()
		if err == nil && stats != nil {
			return *stats
		}
		if err != nil {
			s.logFallback("stats", "", err)
		}
	}
	return reading.ComputeStats(s.mirror.All(), s.now(), s.cfg.Location)
}

// Export 导出本地镜像
func (s *Store) Export() ([]byte, error) {
	data, err := s.mirror.Export()
	if err != nil {
		return nil, newLocalPersistenceError("export", err)
	}
	return data, nil
}

// Import 用导入的数据替换本地镜像
func (s *Store) Import(data []byte) (int, error) {
	n, err := s.mirror.Import(data)
	if errors.Is(err, mirror.ErrCorrupt) {
		return 0, &ValidationError{Field: "data", Message: err.Error()}
	}
	if err != nil {
		return 0, newLocalPersistenceError("import", err)
	}
	return n, nil
}

// ClearAll 清空本地镜像，远程存储支持时一并清空
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.mirror.Clear(); err != nil {
		return newLocalPersistenceError("clear", err)
	}

	clearer, ok := s.remote.(remote.Clearer)
	if !ok || !s.RemoteReady() {
		return nil
	}
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()
	n, err := clearer.Clear(rctx)
	if err != nil {
		s.logFallback("clear", "", err)
		return nil
	}
	logger.WarnString("ReadingStore", "ClearAll", fmt.Sprintf("已清空远程存储中的 %d 条解读", n))
	return nil
}

// validateID 在任何 I/O 之前校验 id
func validateID(id string) error {
	if err := identity.Validate(id); err != nil {
		return &ValidationError{Field: "id", Message: err.Error()}
	}
	return nil
}

// logFallback 记录远程调用失败，调用方随后降级到本地镜像
func (s *Store) logFallback(op, id string, err error) {
	kind := ErrRemoteOperationFailed
	if remote.ClassOf(err) == remote.ClassUnavailable {
		kind = ErrRemoteUnavailable
	}
	var code string
	var status int
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		code = remoteErr.Code
		status = remoteErr.Status
	}
	logger.Warn("ReadingStore",
		zap.String("op", op),
		zap.String("id", id),
		zap.String("kind", kind.Error()),
		zap.String("class", string(remote.ClassOf(err))),
		zap.String("code", code),
		zap.Int("status", status),
		zap.Error(err),
	)
}

func (s *Store) logUnavailable(op, id string) {
	logger.Debug("ReadingStore",
		zap.String("op", op),
		zap.String("id", id),
		zap.String("kind", ErrRemoteUnavailable.Error()),
	)
}
