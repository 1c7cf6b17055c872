package archive

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
)

type rarArchive struct {
	file *os.File
	path string
}

func openRar(path string) (*rarArchive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rar archive %s: %w", path, err)
	}
	return &rarArchive{file: file, path: path}, nil
}

// Walk reads the archive front to back; rar has no central directory.
func (ra *rarArchive) Walk(fn WalkFunc) error {
	if _, err := ra.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek rar archive: %w", err)
	}
	reader, err := rardecode.NewReader(ra.file)
	if err != nil {
		return fmt.Errorf("create rar reader: %w", err)
	}
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rar header: %w", err)
		}
		if header.IsDir {
			continue
		}
		if err := fn(Member{Name: header.Name, Size: header.UnPackedSize}, reader); err != nil {
			return err
		}
	}
}

func (ra *rarArchive) Close() error {
	return ra.file.Close()
}
