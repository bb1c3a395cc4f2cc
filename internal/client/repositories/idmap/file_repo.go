package idmap

import (
	"context"

	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
)

type FileRepository struct {
	x filedb.Executor
}

func NewFileRepository(x filedb.Executor) *FileRepository {
	return &FileRepository{x: x}
}

func reverse(doc *filedb.Document, serverID string) string {
	for l, s := range doc.IDMap {
		if s == serverID {
			return l
		}
	}
	return ""
}

func (r *FileRepository) Map(ctx context.Context, localID, serverID string) error {
	return r.x.Update(func(doc *filedb.Document) error {
		existing := doc.IDMap[localID]
		if err := checkMapping(localID, serverID, existing, reverse(doc, serverID)); err != nil {
			return err
		}
		doc.IDMap[localID] = serverID
		return nil
	})
}

func (r *FileRepository) Resolve(ctx context.Context, localID string) (string, error) {
	var v string
	err := r.x.View(func(doc *filedb.Document) error {
		v = doc.IDMap[localID]
		return nil
	})
	return v, err
}

func (r *FileRepository) ResolveLocal(ctx context.Context, serverID string) (string, error) {
	var v string
	err := r.x.View(func(doc *filedb.Document) error {
		v = reverse(doc, serverID)
		return nil
	})
	return v, err
}
