// Package jsondb persists collections as whole JSON documents in a directory.
//
// Every mutation is a read-modify-write of the complete document. Transactions lock the documents they touch with an
// in-process mutex and a cross-process advisory file lock, always in the same order, and write modified documents
// atomically by renaming a fully written temporary file over the original. Readers therefore never observe a
// partially written document.
package jsondb

import (
	"context"
	"fmt"
	"github.com/gofrs/flock"
	"github.com/myrjola/sagaboard/internal/errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Collection names a document.
type Collection string

const (
	Campaigns  Collection = "campaigns"
	Scenes     Collection = "scenes"
	Characters Collection = "characters"
)

// lockOrder is the global acquisition order that prevents deadlocks between transactions.
var lockOrder = []Collection{Campaigns, Scenes, Characters}

var (
	ErrUnknownCollection = errors.NewSentinel("unknown collection")
	ErrNotInTransaction  = errors.NewSentinel("collection not locked by transaction")
)

const lockRetryDelay = 10 * time.Millisecond

type Database struct {
	dir    string
	logger *slog.Logger
	mu     map[Collection]*sync.RWMutex

	corruptMu sync.Mutex
	corrupted map[Collection]string
}

// Open prepares dir for use. The directory is created if needed and must be writable.
func Open(dir string, logger *slog.Logger) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data directory", slog.String("dir", dir))
	}
	check, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return nil, errors.Wrap(err, "data directory not writable", slog.String("dir", dir))
	}
	_ = check.Close()
	_ = os.Remove(check.Name())

	db := &Database{
		dir:       dir,
		logger:    logger.With("source", "jsondb"),
		mu:        map[Collection]*sync.RWMutex{},
		corrupted: map[Collection]string{},
	}
	for _, c := range lockOrder {
		db.mu[c] = &sync.RWMutex{}
	}
	return db, nil
}

// Dir returns the data directory.
func (db *Database) Dir() string {
	return db.dir
}

// Path returns the file backing the collection.
func (db *Database) Path(c Collection) string {
	return filepath.Join(db.dir, string(c)+".json")
}

func (db *Database) lockPath(c Collection) string {
	return filepath.Join(db.dir, "."+string(c)+".lock")
}

// Corrupted lists the collections that failed to parse during the lifetime of this Database together with the path
// of the preserved copy of the corrupt bytes.
func (db *Database) Corrupted() map[Collection]string {
	db.corruptMu.Lock()
	defer db.corruptMu.Unlock()
	out := make(map[Collection]string, len(db.corrupted))
	for c, p := range db.corrupted {
		out[c] = p
	}
	return out
}

// Tx gives access to the documents locked by a transaction.
type Tx struct {
	docs map[Collection]*Document
}

// Document returns the document of collection c. It fails if the transaction did not lock c.
func (tx *Tx) Document(c Collection) (*Document, error) {
	doc, ok := tx.docs[c]
	if !ok {
		return nil, errors.Wrap(ErrNotInTransaction, "get document", slog.String("collection", string(c)))
	}
	return doc, nil
}

// View runs fn with shared locks on the given collections.
func (db *Database) View(ctx context.Context, fn func(tx *Tx) error, collections ...Collection) error {
	return db.run(ctx, false, fn, collections)
}

// Update runs fn with exclusive locks on the given collections and persists the documents fn modified.
//
// Nothing is written if fn returns an error.
func (db *Database) Update(ctx context.Context, fn func(tx *Tx) error, collections ...Collection) error {
	return db.run(ctx, true, fn, collections)
}

func (db *Database) run(ctx context.Context, writable bool, fn func(tx *Tx) error, collections []Collection) error {
	ordered, err := orderCollections(collections)
	if err != nil {
		return err
	}

	release, err := db.lock(ctx, writable, ordered)
	if err != nil {
		return err
	}
	defer release()

	tx := &Tx{docs: make(map[Collection]*Document, len(ordered))}
	for _, c := range ordered {
		var doc *Document
		if doc, err = db.load(ctx, c); err != nil {
			return err
		}
		doc.readOnly = !writable
		tx.docs[c] = doc
	}

	if err = fn(tx); err != nil {
		return err
	}
	if !writable {
		return nil
	}

	for _, c := range ordered {
		doc := tx.docs[c]
		if !doc.dirty {
			continue
		}
		if err = db.write(c, doc); err != nil {
			return err
		}
		doc.dirty = false
	}
	return nil
}

func orderCollections(collections []Collection) ([]Collection, error) {
	ordered := make([]Collection, 0, len(collections))
	for _, c := range collections {
		if !slices.Contains(lockOrder, c) {
			return nil, errors.Wrap(ErrUnknownCollection, "order collections", slog.String("collection", string(c)))
		}
	}
	for _, c := range lockOrder {
		if slices.Contains(collections, c) {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// lock acquires the in-process and file locks for the ordered collections and returns a function releasing them in
// reverse order.
func (db *Database) lock(ctx context.Context, writable bool, ordered []Collection) (func(), error) {
	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, c := range ordered {
		mu := db.mu[c]
		if writable {
			mu.Lock()
			releases = append(releases, mu.Unlock)
		} else {
			mu.RLock()
			releases = append(releases, mu.RUnlock)
		}

		fileLock := flock.New(db.lockPath(c))
		var (
			locked bool
			err    error
		)
		if writable {
			locked, err = fileLock.TryLockContext(ctx, lockRetryDelay)
		} else {
			locked, err = fileLock.TryRLockContext(ctx, lockRetryDelay)
		}
		if err != nil || !locked {
			releaseAll()
			if err == nil {
				err = ctx.Err()
			}
			return nil, errors.Wrap(err, "lock document", slog.String("collection", string(c)))
		}
		releases = append(releases, func() {
			if unlockErr := fileLock.Unlock(); unlockErr != nil {
				db.logger.LogAttrs(context.Background(), slog.LevelError, "failed to release document lock",
					slog.String("collection", string(c)), errors.SlogError(unlockErr))
			}
		})
	}
	return releaseAll, nil
}

// load reads a document from disk.
//
// A missing document is an empty collection. A document that fails to parse is also treated as empty so that the
// application can proceed, but the condition is logged as a warning and the corrupt bytes are preserved before
// anything overwrites them.
func (db *Database) load(ctx context.Context, c Collection) (*Document, error) {
	path := db.Path(c)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		db.logger.LogAttrs(ctx, slog.LevelDebug, "document absent, starting empty", slog.String("path", path))
		return newDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read document", slog.String("path", path))
	}

	doc, err := decodeDocument(data)
	if errors.Is(err, ErrUnsupportedSchema) {
		return nil, errors.Wrap(err, "load document", slog.String("path", path))
	}
	if err != nil {
		db.handleCorrupt(ctx, c, path, data, err)
		return newDocument(), nil
	}
	return doc, nil
}

func (db *Database) handleCorrupt(ctx context.Context, c Collection, path string, data []byte, cause error) {
	db.corruptMu.Lock()
	defer db.corruptMu.Unlock()

	preserved, seen := db.corrupted[c]
	if !seen {
		preserved = fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if err := os.WriteFile(preserved, data, 0o600); err != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to preserve corrupt document",
				slog.String("path", path), errors.SlogError(err))
			preserved = ""
		}
		db.corrupted[c] = preserved
	}
	db.logger.LogAttrs(ctx, slog.LevelWarn, "document corrupt, continuing with empty collection",
		slog.String("collection", string(c)),
		slog.String("path", path),
		slog.String("preserved", preserved),
		errors.SlogError(cause))
}

// write replaces the document atomically.
func (db *Database) write(c Collection, doc *Document) error {
	path := db.Path(c)
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err = WriteFileAtomic(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write document", slog.String("collection", string(c)))
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path, flushes it to stable storage, and renames it over
// path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temporary file")
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temporary file")
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temporary file")
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return errors.Wrap(err, "chmod temporary file")
	}
	if err = os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrap(err, "rename temporary file")
	}
	return nil
}
