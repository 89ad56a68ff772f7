package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore is a file-backed Store rooted at a directory. Writes commit
// via write-to-temp + rename so a reader never observes a half-written
// file. Read loads a whole file with os.ReadFile; ReadRange goes through
// os.File.ReadAt, which on every supported platform is a single pread
// syscall — O(1) seek without needing an actual mmap mapping.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root, creating the
// directory if it doesn't exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ioError("open", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	full := filepath.Join(s.root, cleaned)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(filepath.Separator)) && full != filepath.Clean(s.root) {
		return "", fmt.Errorf("path escapes storage root: %s", path)
	}
	return full, nil
}

func (s *LocalStore) Write(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return ioError("write", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ioError("write", path, err)
	}

	tmp := full + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ioError("write", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return ioError("write", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return ioError("write", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return ioError("write", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return ioError("write", path, err)
	}
	return nil
}

func (s *LocalStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, ioError("read", path, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(path)
		}
		return nil, ioError("read", path, err)
	}
	return data, nil
}

func (s *LocalStore) ReadRange(ctx context.Context, path string, r ByteRange) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, ioError("read_range", path, err)
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(path)
		}
		return nil, ioError("read_range", path, err)
	}
	defer f.Close()

	buf := make([]byte, r.Length)
	n, err := f.ReadAt(buf, r.Offset)
	if err != nil && err != io.EOF {
		return nil, ioError("read_range", path, err)
	}
	return buf[:n], nil
}

func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, ioError("exists", path, err)
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ioError("exists", path, err)
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full, err := s.resolve(prefix)
	if err != nil {
		return nil, ioError("list", prefix, err)
	}
	baseDir := full
	var matchPrefix string
	if info, statErr := os.Stat(full); statErr != nil || !info.IsDir() {
		baseDir = filepath.Dir(full)
		matchPrefix = filepath.Base(full)
	}

	var results []ObjectInfo
	err = filepath.WalkDir(baseDir, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if matchPrefix != "" && !strings.HasPrefix(filepath.Base(p), matchPrefix) {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		results = append(results, ObjectInfo{
			Path: filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, ioError("list", prefix, err)
	}
	return results, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return ioError("delete", path, err)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return ioError("delete", path, err)
	}
	return nil
}

func (s *LocalStore) Rename(ctx context.Context, from, to string) error {
	fullFrom, err := s.resolve(from)
	if err != nil {
		return ioError("rename", from, err)
	}
	fullTo, err := s.resolve(to)
	if err != nil {
		return ioError("rename", to, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullTo), 0o755); err != nil {
		return ioError("rename", to, err)
	}
	if err := os.Rename(fullFrom, fullTo); err != nil {
		if os.IsNotExist(err) {
			return notFound(from)
		}
		return ioError("rename", from, err)
	}
	return nil
}
