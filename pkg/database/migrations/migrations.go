package migrations

import (
	"tarotshare/app/models/reading"
	"tarotshare/pkg/mirror"
)

// RemoteTables 远程库（直连 PostgreSQL）需要迁移的表
func RemoteTables() []interface{} {
	return []interface{}{
		&reading.Reading{},
	}
}

// MirrorTables 本地镜像（SQLite）需要迁移的表
func MirrorTables() []interface{} {
	return []interface{}{
		&mirror.Entry{},
	}
}
