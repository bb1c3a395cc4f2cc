package metadata

import (
	"context"

	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
)

// FileRepository keeps metadata in the Metadata map of the JSON document.
type FileRepository struct {
	x filedb.Executor
}

func NewFileRepository(x filedb.Executor) *FileRepository {
	return &FileRepository{x: x}
}

func (r *FileRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := r.x.View(func(doc *filedb.Document) error {
		if b, ok := doc.Metadata[key]; ok {
			v = append([]byte{}, b...)
		}
		return nil
	})
	return v, err
}

func (r *FileRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.x.Update(func(doc *filedb.Document) error {
		doc.Metadata[key] = append([]byte{}, value...)
		return nil
	})
}

func (r *FileRepository) Delete(ctx context.Context, key string) error {
	return r.x.Update(func(doc *filedb.Document) error {
		delete(doc.Metadata, key)
		return nil
	})
}
