package db

import (
	"context"
	"fmt"
	"io"

	"github.com/xxxsen/common/database"
	"github.com/xxxsen/common/database/sqlite"
)

var defaultDB database.IDatabase

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS file_hash_cache_tab (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location VARCHAR(1024) NOT NULL,
	file_size BIGINT NOT NULL,
	file_modtime BIGINT NOT NULL,
	header_skip BIGINT NOT NULL,
	data_size BIGINT NOT NULL,
	crc32 VARCHAR(8) NOT NULL,
	sha1 VARCHAR(40) NOT NULL,
	md5 VARCHAR(32) NOT NULL,
	create_time BIGINT NOT NULL
);`

	createIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_file_hash_cache_tab_location
ON file_hash_cache_tab(location);`
)

// SetDefault assigns the global database instance.
func SetDefault(db database.IDatabase) {
	defaultDB = db
}

// Default returns the configured global database instance.
func Default() database.IDatabase {
	return defaultDB
}

// Open opens the sqlite file at path and makes sure the schema exists.
func Open(ctx context.Context, path string) (database.IDatabase, error) {
	sdb, err := sqlite.New(path, func(d database.IDatabase) error {
		return EnsureSchema(ctx, d)
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return sdb, nil
}

// Close releases db when the handle owns a connection.
func Close(db database.IDatabase) error {
	if c, ok := db.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// EnsureSchema initialises required tables and indexes.
func EnsureSchema(ctx context.Context, db database.IDatabase) error {
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, createIndexSQL); err != nil {
		return err
	}
	return nil
}
