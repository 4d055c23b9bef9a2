package export

import (
	"bytes"
	"fmt"
	"io"
	"path"
)

// BlobPutter is the part of a blob store the archive needs.
type BlobPutter interface {
	Put(key string, r io.Reader) (string, error)
}

// Archive keeps a copy of every produced export under "exports/".
type Archive struct {
	store BlobPutter
}

func NewArchive(store BlobPutter) *Archive { return &Archive{store: store} }

func (a *Archive) Save(filename string, data []byte) (string, error) {
	if a == nil || a.store == nil {
		return "", nil
	}
	key, err := a.store.Put(path.Join("exports", filename), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", filename, err)
	}
	return key, nil
}
