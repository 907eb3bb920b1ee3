// Package repositories 直连数据库的远程存储实现
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/logger"
	"tarotshare/pkg/remote"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ReadingRepository 塔罗牌解读记录仓库，实现 remote.Store
type ReadingRepository struct {
	db    *gorm.DB
	table string
	now   func() time.Time
	loc   *time.Location
}

// Option 仓库选项
type Option func(*ReadingRepository)

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(r *ReadingRepository) {
		r.now = now
	}
}

// WithLocation 设置统计「今日」所用的时区
func WithLocation(loc *time.Location) Option {
	return func(r *ReadingRepository) {
		r.loc = loc
	}
}

// NewReadingRepository 创建仓库实例
func NewReadingRepository(db *gorm.DB, table string, opts ...Option) *ReadingRepository {
	if table == "" {
		table = reading.Reading{}.TableName()
	}
	repo := &ReadingRepository{
		db:    db,
		table: table,
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

var (
	_ remote.Store   = (*ReadingRepository)(nil)
	_ remote.Prober  = (*ReadingRepository)(nil)
	_ remote.Clearer = (*ReadingRepository)(nil)
)

// Configured 连接已建立即可用
func (r *ReadingRepository) Configured() bool {
	return r != nil && r.db != nil
}

func (r *ReadingRepository) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

// Insert 创建解读记录
func (r *ReadingRepository) Insert(ctx context.Context, rd *reading.Reading) error {
	if err := r.query(ctx).Create(rd).Error; err != nil {
		return translateError("insert", err)
	}
	return nil
}

// SelectByID 查询公开的解读，不可见时返回 nil
func (r *ReadingRepository) SelectByID(ctx context.Context, id string) (*reading.Reading, error) {
	var rd reading.Reading
	err := r.query(ctx).
		Where("id = ? AND is_public = ?", id, true).
		First(&rd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("select", err)
	}
	return &rd, nil
}

// UpdateViewCount 更新查看次数
func (r *ReadingRepository) UpdateViewCount(ctx context.Context, id string, count int64) (bool, error) {
	result := r.query(ctx).
		Where("id = ?", id).
		Update("view_count", count)
	if result.Error != nil {
		return false, translateError("update view count", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SweepExpired 删除过期记录
func (r *ReadingRepository) SweepExpired(ctx context.Context) (int, error) {
	result := r.query(ctx).
		Where("expires_at <= ?", r.now().UTC()).
		Delete(&reading.Reading{})
	if result.Error != nil {
		return 0, translateError("sweep", result.Error)
	}
	if result.RowsAffected > 0 {
		logger.InfoString("Repository", "SweepExpired", fmt.Sprintf("删除了 %d 条过期解读", result.RowsAffected))
	}
	return int(result.RowsAffected), nil
}

// Stats 在数据库中聚合统计
func (r *ReadingRepository) Stats(ctx context.Context) (*reading.Stats, error) {
	w := reading.NewWindow(r.now().UTC(), r.loc)

	var stats reading.Stats
	err := r.query(ctx).
		Select(`COUNT(*) AS total_readings,
			COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) AS active_readings,
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired_readings,
			COALESCE(SUM(view_count), 0) AS total_views,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS readings_today,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS readings_this_week,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS readings_this_month`,
			w.Now, w.Now, w.StartOfDay.UTC(), w.WeekAgo, w.MonthAgo).
		Scan(&stats).Error
	if err != nil {
		return nil, translateError("stats", err)
	}
	return &stats, nil
}

// Probe 不带可见性过滤地查询记录
func (r *ReadingRepository) Probe(ctx context.Context, id string) (*remote.Visibility, error) {
	var rows []remote.Visibility
	err := r.query(ctx).
		Select("id, is_public, expires_at, created_at, site_name").
		Where("id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, translateError("probe", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Clear 删除全部记录
func (r *ReadingRepository) Clear(ctx context.Context) (int, error) {
	result := r.query(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&reading.Reading{})
	if result.Error != nil {
		return 0, translateError("clear", result.Error)
	}
	return int(result.RowsAffected), nil
}

// translateError 按 SQLSTATE 分类，不解析错误文本
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &remote.Error{
			Op:      op,
			Code:    pgErr.Code,
			Class:   remote.ClassifyCode(pgErr.Code),
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Err:     err,
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		class := remote.ClassUnknown
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			class = remote.ClassConflict
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			class = remote.ClassTimeout
		case sqlite3.ErrAuth, sqlite3.ErrPerm:
			class = remote.ClassPermission
		}
		return &remote.Error{Op: op, Code: fmt.Sprintf("sqlite:%d", int(sqliteErr.ExtendedCode)), Class: class, Message: sqliteErr.Error(), Err: err}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &remote.Error{Op: op, Class: remote.ClassNotFound, Message: err.Error(), Err: err}
	}
	// 模型校验失败（BeforeCreate）
	if errors.Is(err, reading.ErrInvalid) {
		return &remote.Error{Op: op, Class: remote.ClassSchema, Message: err.Error(), Err: err}
	}
	return remote.Wrap(op, err)
}
