package archive

import (
	"fmt"

	"github.com/bodgit/sevenzip"
)

type sevenZipArchive struct {
	reader *sevenzip.ReadCloser
	path   string
}

func openSevenZip(path string) (*sevenZipArchive, error) {
	reader, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z archive %s: %w", path, err)
	}
	return &sevenZipArchive{reader: reader, path: path}, nil
}

func (sa *sevenZipArchive) Walk(fn WalkFunc) error {
	for _, file := range sa.reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open 7z member %s: %w", file.Name, err)
		}
		err = fn(Member{Name: file.Name, Size: int64(file.UncompressedSize)}, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (sa *sevenZipArchive) Close() error {
	return sa.reader.Close()
}
