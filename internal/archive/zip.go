package archive

import (
	"fmt"

	"github.com/klauspost/compress/zip"
)

type zipArchive struct {
	reader *zip.ReadCloser
	path   string
}

func openZip(path string) (*zipArchive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip archive %s: %w", path, err)
	}
	return &zipArchive{reader: reader, path: path}, nil
}

func (za *zipArchive) Walk(fn WalkFunc) error {
	for _, file := range za.reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip member %s: %w", file.Name, err)
		}
		err = fn(Member{Name: file.Name, Size: int64(file.UncompressedSize64)}, rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (za *zipArchive) Close() error {
	return za.reader.Close()
}
