package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// FileStore keeps uploaded files and templates in a single directory under generated names.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrapf(err, "failed to create upload directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// Save writes data under a fresh uuid name keeping the extension of original.
// It returns the stored name.
func (f *FileStore) Save(original string, data []byte) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(original))
	if err := os.WriteFile(filepath.Join(f.dir, name), data, 0644); err != nil {
		return "", eris.Wrapf(err, "write %s", original)
	}
	return name, nil
}

// Read returns the contents of a stored file.
func (f *FileStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(name))
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "file %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", name)
	}
	return data, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (f *FileStore) Remove(name string) error {
	err := os.Remove(f.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "remove %s", name)
	}
	return nil
}

// Path returns the absolute location of a stored name. Directory components are stripped.
func (f *FileStore) Path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}

// Usage returns the bytes used by the directory.
func (f *FileStore) Usage() (int64, error) {
	return DiskUsageBytes(f.dir)
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
