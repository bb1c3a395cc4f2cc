package storage

import (
	"context"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
)

const fileLockTimeout = 2 * time.Second

type fileStore struct {
	db    *filedb.DB
	clock timex.Clock
	repos *Repositories
}

func fileRepos(x filedb.Executor, clock timex.Clock) *Repositories {
	return &Repositories{
		Records:  records.NewFileRepository(x, clock),
		IDMap:    idmap.NewFileRepository(x),
		Queue:    queue.NewFileRepository(x),
		Metadata: metadata.NewFileRepository(x),
	}
}

func openFile(ctx context.Context, path string, clock timex.Clock) (*fileStore, error) {
	db, err := filedb.Open(ctx, path, fileLockTimeout)
	if err != nil {
		return nil, err
	}
	return &fileStore{db: db, clock: clock, repos: fileRepos(db, clock)}, nil
}

func (s *fileStore) Repos() *Repositories { return s.repos }

func (s *fileStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return s.db.WithTx(ctx, func(ctx context.Context, tx *filedb.Tx) error {
		return fn(ctx, fileRepos(tx, s.clock))
	})
}

func (s *fileStore) Close() error { return s.db.Close() }
