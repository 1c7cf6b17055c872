package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/database"
)

func TestFileHashCacheDao(t *testing.T) {
	ctx := context.Background()
	sdb, err := Open(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer Close(sdb)

	dao := NewFileHashCacheDao(sdb)
	entry := &HashCacheEntry{
		Location:    "/roms/a.bin",
		FileSize:    4096,
		FileModTime: 1700000000,
		HeaderSkip:  16,
		DataSize:    4080,
		CRC32:       "deadbeef",
		SHA1:        "sha",
		MD5:         "md5",
	}
	require.NoError(t, dao.Upsert(ctx, entry))

	got, ok, err := dao.Lookup(ctx, "/roms/a.bin", 4096, 1700000000, 16)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "deadbeef", got.CRC32)
	assert.Equal(t, int64(4080), got.DataSize)
	assert.NotZero(t, got.CreateTime)

	_, ok, err = dao.Lookup(ctx, "/roms/a.bin", 4096, 1700000001, 16)
	require.NoError(t, err)
	assert.False(t, ok, "stale modtime")
	_, ok, err = dao.Lookup(ctx, "/roms/a.bin", 4096, 1700000000, 0)
	require.NoError(t, err)
	assert.False(t, ok, "different header skip")

	entry.FileModTime = 1700000001
	entry.CRC32 = "cafebabe"
	require.NoError(t, dao.Upsert(ctx, entry))
	got, ok, err = dao.Lookup(ctx, "/roms/a.bin", 4096, 1700000001, 16)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafebabe", got.CRC32)

	require.NoError(t, dao.Upsert(ctx, &HashCacheEntry{Location: "/roms/b.bin"}))
	all, err := dao.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, dao.DeleteByLocations(ctx, []string{"/roms/a.bin"}))
	all, err = dao.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "/roms/b.bin", all[0].Location)
	require.NoError(t, dao.DeleteByLocations(ctx, nil))
}

func TestFileHashCacheDaoWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	dao := newFileHashCacheDao(func() database.IDatabase { return nil })

	_, ok, err := dao.Lookup(ctx, "/roms/a.bin", 1, 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Error(t, dao.Upsert(ctx, &HashCacheEntry{Location: "x"}))
	_, err = dao.ListAll(ctx)
	assert.Error(t, err)
}

func TestOpenReusesExistingSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewFileHashCacheDao(first).Upsert(ctx, &HashCacheEntry{Location: "/roms/keep.bin"}))
	require.NoError(t, Close(first))

	second, err := Open(ctx, path)
	require.NoError(t, err)
	defer Close(second)
	all, err := NewFileHashCacheDao(second).ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "/roms/keep.bin", all[0].Location)

	assert.NoError(t, Close(nil))
}
