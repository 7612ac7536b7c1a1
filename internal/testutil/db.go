// Package testutil 测试用内存数据库
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/DT191220/YDJX-sub000/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq int64

// NewDB 每个测试一个独立的内存 SQLite 库，已迁移并写入默认科目
//
// SQLite 同一时间只允许一个写连接，连接池限制为 1；
// 事务内必须使用传入的 tx，不能再用外层 db，否则会互相等待
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ydjx_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(0)", atomic.AddInt64(&seq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db))
	return db
}
