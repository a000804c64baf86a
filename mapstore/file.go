package mapstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// mapExt is the archive file extension. Files without it are ignored
// so a maps directory can hold operator notes alongside archives.
const mapExt = ".map"

// FileStore keeps map archives as flat files in one directory.
// Saves are atomic: data lands in a temp file that is fsynced and
// renamed over the target, so a crash never leaves a torn archive.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrap("init", "", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+mapExt)
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrap("save", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return wrap("save", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return wrap("save", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return wrap("save", name, err)
	}
	if err := tmp.Close(); err != nil {
		return wrap("save", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return wrap("save", name, err)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap("load", name, err)
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, wrap("load", name, err)
	}
	return data, nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("list", "", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, wrap("list", "", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), mapExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, wrap("list", e.Name(), err)
		}
		infos = append(infos, Info{
			Name:    strings.TrimSuffix(e.Name(), mapExt),
			Size:    fi.Size(),
			SavedAt: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrap("delete", name, err)
	}

	if err := os.Remove(s.path(name)); err != nil {
		return wrap("delete", name, err)
	}
	return nil
}

// Close implements Store. The file backend holds no open handles.
func (s *FileStore) Close() error { return nil }

// String names the backend for logs.
func (s *FileStore) String() string {
	return fmt.Sprintf("file(%s)", s.dir)
}

// Verify FileStore implements Store.
var _ Store = (*FileStore)(nil)
