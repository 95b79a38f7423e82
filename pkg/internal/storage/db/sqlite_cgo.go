//go:build !no_sqlite && cgo

package db

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/photovault/pkg/configs"
)

// mattn/go-sqlite3 的 DSN 参数写法.
const sqliteParams = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"

// createSQLiteDialector CGo 版本，DSN 未指定 busy_timeout 时补上默认参数.
func createSQLiteDialector(dsn string) gorm.Dialector {
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}

		dsn += sep + sqliteParams
	}

	return sqlite.Open(dsn)
}

func init() {
	RegisterDialectorFactory(configs.SQLite, createSQLiteDialector)
}
