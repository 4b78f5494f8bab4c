//go:build !cgo_sqlite

package main

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// initDB opens the database with the pure Go driver. Its DSN takes pragmas
// as _pragma=name(value) instead of go-sqlite3's _name=value, so the common
// go-sqlite3 options are rewritten.
func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite", nativeDSN(dataSource))
}

func nativeDSN(dataSource string) string {
	base, query, ok := strings.Cut(dataSource, "?")
	if !ok {
		return dataSource
	}
	var params []string
	for _, kv := range strings.Split(query, "&") {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "_journal_mode", "_busy_timeout", "_synchronous", "_foreign_keys":
			params = append(params, "_pragma="+strings.TrimPrefix(k, "_")+"("+v+")")
		default:
			params = append(params, kv)
		}
	}
	return base + "?" + strings.Join(params, "&")
}
