// Package filedb is the single-document JSON backend used where SQLite is not
// wanted. The whole store is one file guarded by an in-process mutex and a
// cross-process flock. Every committed change rewrites the file atomically
// (temp file + rename), so a crash leaves either the old or the new state.
package filedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the store.
var ErrLocked = errors.New("file store is locked by another process")

// Document is the persisted state.
type Document struct {
	Records    map[string]*models.Record `json:"records"`
	IDMap      map[string]string         `json:"idMap"`
	Operations []*models.Operation       `json:"operations"`
	NextSeq    int64                     `json:"nextSeq"`
	Metadata   map[string][]byte         `json:"metadata"`
}

func newDocument() *Document {
	return &Document{
		Records:  map[string]*models.Record{},
		IDMap:    map[string]string{},
		Metadata: map[string][]byte{},
		NextSeq:  1,
	}
}

func (d *Document) normalize() {
	if d.Records == nil {
		d.Records = map[string]*models.Record{}
	}
	if d.IDMap == nil {
		d.IDMap = map[string]string{}
	}
	if d.Metadata == nil {
		d.Metadata = map[string][]byte{}
	}
	if d.NextSeq < 1 {
		d.NextSeq = 1
	}
}

func (d *Document) clone() (*Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	c := newDocument()
	if err := json.Unmarshal(b, c); err != nil {
		return nil, err
	}
	c.normalize()
	return c, nil
}

// Executor runs read and write callbacks against a document. *DB commits each
// Update on its own; *Tx defers the commit to the end of the transaction.
type Executor interface {
	View(fn func(doc *Document) error) error
	Update(fn func(doc *Document) error) error
}

type DB struct {
	path string
	lock *flock.Flock

	mu  sync.Mutex
	doc *Document
}

// Open loads (or creates) the document at path and takes the file lock,
// waiting up to lockTimeout for another process to release it.
func Open(ctx context.Context, path string, lockTimeout time.Duration) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	lctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(lctx, 50*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	doc, err := load(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &DB{path: path, lock: lock, doc: doc}, nil
}

func load(path string) (*Document, error) {
	doc := newDocument()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	doc.normalize()
	return doc, nil
}

func (db *DB) persist(doc *Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(db.path), filepath.Base(db.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmpName, db.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (db *DB) View(fn func(doc *Document) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.doc)
}

// Update applies fn to a copy of the document and publishes it only after
// it has been written to disk.
func (db *DB) Update(fn func(doc *Document) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commit(fn)
}

func (db *DB) commit(fn func(doc *Document) error) error {
	work, err := db.doc.clone()
	if err != nil {
		return err
	}
	if err := fn(work); err != nil {
		return err
	}
	if err := db.persist(work); err != nil {
		return err
	}
	db.doc = work
	return nil
}

// Tx is a unit of work holding the store mutex until it finishes.
type Tx struct {
	doc *Document
}

func (tx *Tx) View(fn func(doc *Document) error) error   { return fn(tx.doc) }
func (tx *Tx) Update(fn func(doc *Document) error) error { return fn(tx.doc) }

// WithTx runs fn against a private working copy and commits it in a single
// write if fn succeeds. On error or panic nothing is written. fn must not
// call back into db itself.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commit(func(doc *Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, &Tx{doc: doc})
	})
}

// Close releases the file lock.
func (db *DB) Close() error {
	return db.lock.Unlock()
}
