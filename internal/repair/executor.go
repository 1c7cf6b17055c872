package repair

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	writeChunkSize = 64 * 1024
	backupSuffix   = ".bak"
)

// BackupPath returns the sibling path a backup of path is written to.
func BackupPath(path string) string {
	return path + backupSuffix
}

// ExecuteRepairs applies every action of plan. With createBackup a copy of
// the original is written first; a file whose backup fails is left
// untouched. One failing action never stops the others.
func ExecuteRepairs(plan *Plan, createBackup bool) Summary {
	var sum Summary
	if plan == nil {
		return sum
	}
	for _, act := range plan.Repairable {
		if createBackup {
			created, err := ensureBackup(act.FilePath)
			if err != nil {
				sum.Failed++
				sum.Errors = append(sum.Errors, FileError{Path: act.FilePath, Err: err})
				continue
			}
			if created {
				sum.BackedUp++
			}
		}
		if err := applyAction(act); err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, FileError{Path: act.FilePath, Err: err})
			continue
		}
		sum.Repaired++
	}
	return sum
}

func applyAction(act Action) error {
	switch act.Method.Kind {
	case MethodAppendPadding:
		return appendFill(act.FilePath, act.Method.BytesAdded, act.Method.FillByte)
	case MethodPrependPadding:
		return prependFill(act.FilePath, act.HeaderSize, act.Method.BytesAdded, act.Method.FillByte)
	default:
		return fmt.Errorf("unsupported repair method %d", act.Method.Kind)
	}
}

// ensureBackup copies path to its backup sibling unless one already
// exists. It reports whether a new backup was written.
func ensureBackup(path string) (bool, error) {
	bak := BackupPath(path)
	st, err := os.Lstat(bak)
	if err == nil {
		if !st.Mode().IsRegular() {
			return false, fmt.Errorf("backup path %s is not a regular file", bak)
		}
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat backup %s: %w", bak, err)
	}
	if err := copyFile(path, bak); err != nil {
		return false, fmt.Errorf("create backup %s: %w", bak, err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, st.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func writeFill(w io.Writer, count uint64, fill byte) error {
	if count == 0 {
		return nil
	}
	size := uint64(writeChunkSize)
	if count < size {
		size = count
	}
	chunk := make([]byte, size)
	if fill != 0 {
		for i := range chunk {
			chunk[i] = fill
		}
	}
	for count > 0 {
		n := size
		if count < n {
			n = count
		}
		if _, err := w.Write(chunk[:n]); err != nil {
			return err
		}
		count -= n
	}
	return nil
}

func appendFill(path string, count uint64, fill byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("open rom for append: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat rom: %w", err)
	}
	if err := writeFill(f, count, fill); err != nil {
		_ = f.Truncate(st.Size())
		_ = f.Close()
		return fmt.Errorf("append padding: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close rom: %w", err)
	}
	return nil
}

func prependFill(path string, headerSize, count uint64, fill byte) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rom for prepend: %w", err)
	}
	defer src.Close()
	st, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat rom: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".repair-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if headerSize > 0 {
		if _, err = io.CopyN(tmp, src, int64(headerSize)); err != nil {
			return fmt.Errorf("copy header: %w", err)
		}
	}
	if err = writeFill(tmp, count, fill); err != nil {
		return fmt.Errorf("write padding: %w", err)
	}
	if _, err = io.Copy(tmp, src); err != nil {
		return fmt.Errorf("copy body: %w", err)
	}
	if err = tmp.Chmod(st.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace rom: %w", err)
	}
	return nil
}
