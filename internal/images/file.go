package images

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) Put(_ context.Context, key string, data io.Reader) error {
	path := filepath.Join(f.Dir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, data)
	return err
}

func (f *FileStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.Dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(f.Dir, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
