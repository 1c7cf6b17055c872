package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/datindex"
	appdb "github.com/xxxsen/retrojunk/internal/db"
	"github.com/xxxsen/retrojunk/internal/hasher"
	"github.com/xxxsen/retrojunk/internal/model"
	"github.com/xxxsen/retrojunk/internal/storage"
	"github.com/xxxsen/retrojunk/internal/verdict"
	"go.uber.org/zap"
)

// maxBufferedMember bounds archive members read into memory so the
// analyzer can seek; larger members are hashed as a plain stream.
const maxBufferedMember = 64 * 1024 * 1024

type romInfo struct {
	Path       string
	Size       int64
	HeaderSkip uint64
	Hashes     hasher.FileHashes
	Ident      analyzer.RomIdentification
}

// inspectRom hashes a loose file, consulting the hash cache when one is
// configured, and runs the analyzer over its header.
func inspectRom(ctx context.Context, a analyzer.Analyzer, path string) (*romInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rom %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat rom %s: %w", path, err)
	}
	info := &romInfo{Path: path, Size: st.Size()}
	if info.HeaderSkip, err = a.DatHeaderSize(f, uint64(st.Size())); err != nil {
		return nil, fmt.Errorf("detect header %s: %w", path, err)
	}
	if info.Hashes, err = cachedHash(ctx, f, path, st, info.HeaderSkip); err != nil {
		return nil, err
	}
	analyzeRom(ctx, a, f, info)
	return info, nil
}

// inspectStream is inspectRom for archive members.
func inspectStream(ctx context.Context, a analyzer.Analyzer, name string, r io.Reader, size int64) (*romInfo, error) {
	info := &romInfo{Path: name, Size: size}
	if size < 0 || size > maxBufferedMember {
		h, err := hasher.HashStream(r, hasher.PaddingSpec{})
		if err != nil {
			return nil, fmt.Errorf("hash member %s: %w", name, err)
		}
		info.Hashes = h
		return info, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", name, err)
	}
	br := bytes.NewReader(data)
	info.Size = int64(len(data))
	if info.HeaderSkip, err = a.DatHeaderSize(br, uint64(len(data))); err != nil {
		return nil, fmt.Errorf("detect header %s: %w", name, err)
	}
	if info.Hashes, err = hasher.HashPlain(br, info.HeaderSkip); err != nil {
		return nil, fmt.Errorf("hash member %s: %w", name, err)
	}
	analyzeRom(ctx, a, br, info)
	return info, nil
}

func analyzeRom(ctx context.Context, a analyzer.Analyzer, r io.ReadSeeker, info *romInfo) {
	ident, err := a.Analyze(r, analyzer.Options{})
	if err != nil {
		logutil.GetLogger(ctx).Debug("analyze rom header failed",
			zap.String("path", info.Path),
			zap.Error(err),
		)
		return
	}
	if ident != nil {
		info.Ident = *ident
	}
}

func cachedHash(ctx context.Context, f *os.File, path string, st os.FileInfo, headerSkip uint64) (hasher.FileHashes, error) {
	logger := logutil.GetLogger(ctx)
	location := path
	if abs, err := filepath.Abs(path); err == nil {
		location = abs
	}
	dao := appdb.FileHashCacheDao
	modTime := st.ModTime().UnixNano()

	entry, ok, err := dao.Lookup(ctx, location, st.Size(), modTime, int64(headerSkip))
	if err != nil {
		logger.Warn("hash cache lookup failed", zap.String("location", location), zap.Error(err))
	}
	if ok {
		return hasher.FileHashes{
			DataSize: uint64(entry.DataSize),
			CRC32:    entry.CRC32,
			SHA1:     entry.SHA1,
			MD5:      entry.MD5,
		}, nil
	}

	h, err := hasher.HashPlain(f, headerSkip)
	if err != nil {
		return hasher.FileHashes{}, fmt.Errorf("hash rom %s: %w", path, err)
	}
	if appdb.Default() == nil {
		return h, nil
	}
	if err := dao.Upsert(ctx, &appdb.HashCacheEntry{
		Location:    location,
		FileSize:    st.Size(),
		FileModTime: modTime,
		HeaderSkip:  int64(headerSkip),
		DataSize:    int64(h.DataSize),
		CRC32:       h.CRC32,
		SHA1:        h.SHA1,
		MD5:         h.MD5,
	}); err != nil {
		logger.Warn("hash cache update failed", zap.String("location", location), zap.Error(err))
	}
	return h, nil
}

// describeRom matches info against idx and renders the report row.
func describeRom(idx *datindex.Index, a analyzer.Analyzer, info *romInfo) model.VerifyFile {
	vf := model.VerifyFile{
		Path:       filepath.ToSlash(info.Path),
		Size:       info.Size,
		HeaderSkip: info.HeaderSkip,
		DataSize:   info.Hashes.DataSize,
		CRC32:      info.Hashes.CRC32,
		SHA1:       info.Hashes.SHA1,
		MD5:        info.Hashes.MD5,
		Serial:     info.Ident.Serial,
		Title:      info.Ident.InternalTitle,
	}
	gameCode, _ := a.ExtractDatGameCode(info.Ident.Serial)

	expected := info.Ident.ExpectedSize
	if m, ok := idx.Identify(info.Ident.Serial, gameCode, info.Hashes.DataSize, info.Hashes); ok {
		entry, _ := idx.Entry(m.GameIndex)
		vf.Game = entry.Name
		vf.Region = entry.Region
		vf.MatchMethod = m.Method.String()
		if expected == 0 {
			expected = entry.Size
		}
	} else if info.Ident.Serial != "" {
		res := idx.MatchBySerial(info.Ident.Serial, gameCode)
		if res.Kind == datindex.SerialAmbiguous {
			vf.Candidates = res.Candidates
		}
	}
	if expected > 0 {
		size := info.Hashes.DataSize
		if info.HeaderSkip == verdict.CopierHeaderSize {
			size = uint64(info.Size)
		}
		vf.Verdict = verdict.Classify(size, expected).String()
	}
	return vf
}

func writeJSONReport(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure report dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// uploadReport copies a written report to the configured object store.
func uploadReport(ctx context.Context, kind, localPath string) (string, error) {
	store := storage.DefaultClient()
	if store == nil {
		return "", fmt.Errorf("upload %s report: storage not configured", kind)
	}
	key := fmt.Sprintf("%s/%s-%s.json", kind, kind, time.Now().UTC().Format("20060102-150405"))
	if err := store.UploadFile(ctx, key, localPath, "application/json"); err != nil {
		return "", fmt.Errorf("upload %s report: %w", kind, err)
	}
	return key, nil
}

func humanSize(n uint64) string {
	return humanize.IBytes(n)
}

func fillByteString(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

func requireFlag(cmd, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s requires --%s", cmd, name)
	}
	return nil
}
