package mirror

import (
	"errors"
	"fmt"
	"sync"

	"tarotshare/app/models"
	"tarotshare/pkg/redis"

	"github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV 本地镜像的底层键值存储，所有操作都是同步的
type KV interface {
	// Load 读取键值，键不存在时返回 nil, nil
	Load(key string) ([]byte, error)
	Store(key string, value []byte) error
	Remove(key string) error
}

/* ------------------ 内存 ------------------ */

// MemoryKV 进程内存储，quota 为 0 表示不限制大小
type MemoryKV struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
}

// NewMemoryKV 创建内存存储，quota 为单个值的最大字节数
func NewMemoryKV(quota int) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), quota: quota}
}

func (m *MemoryKV) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemoryKV) Store(key string, value []byte) error {
	if m.quota > 0 && len(value) > m.quota {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(value), m.quota)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

/* ------------------ SQLite (GORM) ------------------ */

// Entry 本地镜像表的一行
type Entry struct {
	Key   string `gorm:"column:entry_key;primaryKey;type:varchar(191)"`
	Value string `gorm:"type:text"`

	models.CommonTimestampsField
}

// TableName 指定表名
func (Entry) TableName() string {
	return "mirror_entries"
}

// GormKV 基于 GORM 的键值存储，默认搭配 SQLite 文件使用
type GormKV struct {
	db *gorm.DB
}

// NewGormKV 创建 GormKV，表结构由 migrations 负责创建
func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

func (g *GormKV) Load(key string) ([]byte, error) {
	var entry Entry
	err := g.db.Where("entry_key = ?", key).Limit(1).Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.Key == "" {
		return nil, nil
	}
	return []byte(entry.Value), nil
}

func (g *GormKV) Store(key string, value []byte) error {
	entry := Entry{Key: key, Value: string(value)}
	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	return translateSQLiteError(err)
}

func (g *GormKV) Remove(key string) error {
	return g.db.Where("entry_key = ?", key).Delete(&Entry{}).Error
}

// translateSQLiteError 磁盘已满按配额错误处理
func translateSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

/* ------------------ Redis ------------------ */

// RedisKV 基于 Redis 主库的键值存储
type RedisKV struct {
	client *redis.RedisClient
}

// NewRedisKV 创建 RedisKV
func NewRedisKV(client *redis.RedisClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Load(key string) ([]byte, error) {
	value, ok, err := r.client.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(value), nil
}

func (r *RedisKV) Store(key string, value []byte) error {
	err := r.client.Set(key, value, 0)
	// maxmemory 达到上限时 Redis 返回 OOM 前缀的错误
	if err != nil && goredis.HasErrorPrefix(err, "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func (r *RedisKV) Remove(key string) error {
	return r.client.Del(key)
}
