package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

// resolve maps a key below base; keys escaping it are rejected.
func (s *FSStore) resolve(key string) (string, string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + key))[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return clean, filepath.Join(s.base, filepath.FromSlash(clean)), nil
}

// Put writes through a temp file so readers never see a partial export.
func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	clean, dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return clean, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	_, p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
