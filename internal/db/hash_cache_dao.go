package db

import (
	"context"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/common/database"
)

const hashCacheTableName = "file_hash_cache_tab"

var hashCacheFields = []string{
	"location", "file_size", "file_modtime", "header_skip",
	"data_size", "crc32", "sha1", "md5", "create_time",
}

var FileHashCacheDao = newFileHashCacheDao(Default)

type fileHashCacheDao struct {
	dbGetter DatabaseGetter
}

// HashCacheEntry is one cached digest set. It stays valid while size,
// modification time and header skip of the file are unchanged.
type HashCacheEntry struct {
	Location    string
	FileSize    int64
	FileModTime int64
	HeaderSkip  int64
	DataSize    int64
	CRC32       string
	SHA1        string
	MD5         string
	CreateTime  int64
}

func newFileHashCacheDao(getter DatabaseGetter) *fileHashCacheDao {
	return &fileHashCacheDao{
		dbGetter: getter,
	}
}

// NewFileHashCacheDao builds a dao bound to db.
func NewFileHashCacheDao(db database.IDatabase) *fileHashCacheDao {
	return newFileHashCacheDao(func() database.IDatabase { return db })
}

// Lookup returns the cached entry for location when the file still has the
// given size and modification time and was hashed with the same header skip.
func (dao *fileHashCacheDao) Lookup(ctx context.Context, location string, size, modTime, headerSkip int64) (*HashCacheEntry, bool, error) {
	db := dao.dbGetter()
	if db == nil {
		return nil, false, nil
	}

	where := map[string]interface{}{
		"location": location,
		"_limit":   []uint{0, 1},
	}
	query, args, err := builder.BuildSelect(hashCacheTableName, where, hashCacheFields)
	if err != nil {
		return nil, false, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query hash cache: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var entry HashCacheEntry
		if err := rows.Scan(&entry.Location, &entry.FileSize, &entry.FileModTime, &entry.HeaderSkip,
			&entry.DataSize, &entry.CRC32, &entry.SHA1, &entry.MD5, &entry.CreateTime); err != nil {
			return nil, false, fmt.Errorf("scan hash cache: %w", err)
		}
		if entry.FileSize == size && entry.FileModTime == modTime && entry.HeaderSkip == headerSkip {
			return &entry, true, nil
		}
		return nil, false, nil
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// Upsert stores or replaces the cached digests of entry.Location.
func (dao *fileHashCacheDao) Upsert(ctx context.Context, entry *HashCacheEntry) error {
	db := dao.dbGetter()
	if db == nil {
		return fmt.Errorf("hash cache dao not initialised")
	}

	createTime := entry.CreateTime
	if createTime == 0 {
		createTime = time.Now().Unix()
	}
	payload := []map[string]interface{}{{
		"location":     entry.Location,
		"file_size":    entry.FileSize,
		"file_modtime": entry.FileModTime,
		"header_skip":  entry.HeaderSkip,
		"data_size":    entry.DataSize,
		"crc32":        entry.CRC32,
		"sha1":         entry.SHA1,
		"md5":          entry.MD5,
		"create_time":  createTime,
	}}
	insertSQL, insertArgs, err := builder.BuildReplaceInsert(hashCacheTableName, payload)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		return fmt.Errorf("upsert hash cache: %w", err)
	}
	return nil
}

func (dao *fileHashCacheDao) ListAll(ctx context.Context) ([]HashCacheEntry, error) {
	db := dao.dbGetter()
	if db == nil {
		return nil, fmt.Errorf("hash cache dao not initialised")
	}
	query, args, err := builder.BuildSelect(hashCacheTableName, nil, []string{"location"})
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hash cache: %w", err)
	}
	defer rows.Close()

	var result []HashCacheEntry
	for rows.Next() {
		var entry HashCacheEntry
		if err := rows.Scan(&entry.Location); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (dao *fileHashCacheDao) DeleteByLocations(ctx context.Context, locations []string) error {
	if len(locations) == 0 {
		return nil
	}
	db := dao.dbGetter()
	if db == nil {
		return fmt.Errorf("hash cache dao not initialised")
	}
	where := map[string]interface{}{"location in": locations}
	deleteSQL, args, err := builder.BuildDelete(hashCacheTableName, where)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, deleteSQL, args...)
	if err != nil {
		return fmt.Errorf("delete hash cache entries: %w", err)
	}
	return nil
}
