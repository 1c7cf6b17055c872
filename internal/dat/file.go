package dat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

// ParseFile opens and parses a DAT file. Catalogs shipped as .gz, .xz or
// .zip are decompressed on the fly.
func ParseFile(path string) (*DatFile, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" {
		return parseZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dat %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch ext {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip dat %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case ".xz":
		xr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("open xz dat %s: %w", path, err)
		}
		r = xr
	}

	df, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse dat %s: %w", path, err)
	}
	return df, nil
}

func parseZip(path string) (*DatFile, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip dat %s: %w", path, err)
	}
	defer zr.Close()

	var member *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".dat", ".xml":
			member = f
		}
		if member != nil {
			break
		}
	}
	if member == nil {
		return nil, fmt.Errorf("no .dat or .xml member in %s", path)
	}

	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", member.Name, path, err)
	}
	defer rc.Close()

	df, err := Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("parse dat %s!%s: %w", path, member.Name, err)
	}
	return df, nil
}
