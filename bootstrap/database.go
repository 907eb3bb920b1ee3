package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tarotshare/pkg/config"
	"tarotshare/pkg/database"
	"tarotshare/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// connectPostgreSQL 连接远程 PostgreSQL 并迁移表结构
func connectPostgreSQL(tables []interface{}) (*gorm.DB, error) {
	db, err := database.Connect(postgresDialector(), logger.NewGormLogger(), database.PoolConfig{
		MaxOpenConns:    config.GetInt("remote.postgres.max_open_connections"),
		MaxIdleConns:    config.GetInt("remote.postgres.max_idle_connections"),
		ConnMaxLifetime: config.GetSeconds("remote.postgres.max_life_seconds"),
	})
	if err != nil {
		return nil, err
	}
	if err := migrate(db, "远程库", tables); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

// connectSQLite 打开本地 SQLite 文件并迁移表结构
func connectSQLite(path string, tables []interface{}) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	// SQLite 只允许一个写连接
	db, err := database.Connect(sqlite.Open(path), logger.NewGormLogger(), database.PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		return nil, err
	}
	if err := migrate(db, "本地镜像", tables); err != nil {
		database.Close(db)
		return nil, err
	}
	return db, nil
}

// postgresDialector 配置 PostgreSQL 连接
func postgresDialector() gorm.Dialector {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		config.Get("remote.postgres.host"),
		config.Get("remote.postgres.port"),
		config.Get("remote.postgres.username"),
		config.Get("remote.postgres.password"),
		config.Get("remote.postgres.database"),
		config.Get("remote.postgres.sslmode", "require"),
	)
	return postgres.New(postgres.Config{
		DSN: dsn,
	})
}

// migrate 自动迁移数据库结构
func migrate(db *gorm.DB, name string, tables []interface{}) error {
	start := time.Now()
	if err := database.AutoMigrate(db, tables); err != nil {
		logger.ErrorString(name, "自动迁移", "数据表结构迁移失败："+err.Error())
		return err
	}
	logger.InfoString(name, "自动迁移", fmt.Sprintf("数据表结构迁移成功，耗时 %s", time.Since(start)))
	return nil
}
