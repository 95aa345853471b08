package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"hareql.dev/hareerr"
)

// Catalogue is the root DBO: the schema namespace, the lock manager,
// and the transaction manager every Tx is created through (spec.md
// §3/§4.4/§4.5).
type Catalogue struct {
	root string

	fileLock *flock.Flock

	closeLock sync.RWMutex
	store     *nameStore // schemaName -> dir path

	mu      sync.RWMutex
	schemas map[SchemaName]*Schema

	locks *LockManager
	txs   *TxManager

	poolCapacity int
	log          *logrus.Entry
}

// Config bundles Open's tunables, mirrored from hconfig's engine
// section (lock wait deadline, buffer pool capacity per column file,
// bounded transaction history).
type Config struct {
	LockDeadline time.Duration
	PoolCapacity int
	MaxTxHistory int
}

func (c Config) withDefaults() Config {
	if c.LockDeadline <= 0 {
		c.LockDeadline = 30 * time.Second
	}
	if c.PoolCapacity <= 0 {
		c.PoolCapacity = 256
	}
	if c.MaxTxHistory <= 0 {
		c.MaxTxHistory = 1000
	}
	return c
}

// Open opens (creating if absent) the catalogue rooted at dir. A
// gofrs/flock advisory lock on the root directory prevents a second
// process from opening the same catalogue concurrently, since the
// page layer's own locking is per-file, not per-catalogue.
func Open(dir string, cfg Config, log *logrus.Entry) (*Catalogue, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, hareerr.New(hareerr.KindDataCorruption, RootName, err)
	}
	fl := flock.New(filepath.Join(dir, ".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, hareerr.New(hareerr.KindFileLocked, RootName, err)
	}
	if !locked {
		return nil, hareerr.Newf(hareerr.KindFileLocked, RootName, "catalogue at %s is already open by another process", dir)
	}
	store, err := openNameStore(filepath.Join(dir, "catalogue.db"))
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	locks := NewLockManager()
	cat := &Catalogue{
		root:         dir,
		fileLock:     fl,
		store:        store,
		schemas:      make(map[SchemaName]*Schema),
		locks:        locks,
		txs:          NewTxManager(locks, cfg.LockDeadline, cfg.MaxTxHistory),
		poolCapacity: cfg.PoolCapacity,
		log:          log,
	}
	names, err := store.listStrings()
	if err != nil {
		_ = fl.Unlock()
		return nil, hareerr.New(hareerr.KindDataCorruption, RootName, err)
	}
	for schemaName, schemaDir := range names {
		s, err := openSchema(cat, SchemaName(schemaName), schemaDir, cfg.PoolCapacity, log)
		if err != nil {
			_ = fl.Unlock()
			return nil, err
		}
		cat.schemas[SchemaName(schemaName)] = s
	}
	return cat, nil
}

// NewTx begins a new transaction tracked by the catalogue's TxManager.
func (c *Catalogue) NewTx(mode TxMode) *Tx {
	return c.txs.Begin(mode)
}

// TxStats returns a snapshot of tracked transactions, for cmd/hareql's
// stats surface.
func (c *Catalogue) TxStats() []TxRecord { return c.txs.Stats() }

// Close closes every schema/entity/column/index file beneath the
// catalogue and releases its advisory root lock.
func (c *Catalogue) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, s := range c.schemas {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.store.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.fileLock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// CatalogueTx is the transactional view of the root Catalogue.
type CatalogueTx struct {
	tx  *Tx
	cat *Catalogue
}

func (c *Catalogue) Tx(ctx context.Context, tx *Tx, mode LockMode) (*CatalogueTx, error) {
	if err := tx.RequestLock(ctx, c, mode); err != nil {
		return nil, err
	}
	return &CatalogueTx{tx: tx, cat: c}, nil
}

func (ctx *CatalogueTx) ListSchemas() []SchemaName {
	c := ctx.cat
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SchemaName, 0, len(c.schemas))
	for n := range c.schemas {
		out = append(out, n)
	}
	return out
}

func (ctx *CatalogueTx) SchemaForName(name SchemaName) (*Schema, bool) {
	c := ctx.cat
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	return s, ok
}

// CreateSchema creates a new schema namespace directory and registers
// it, rolling both back if the enclosing Tx aborts.
func (ctx *CatalogueTx) CreateSchema(goCtx context.Context, name SchemaName) (*Schema, error) {
	if err := ctx.tx.RequestLock(goCtx, ctx.cat, ExclusiveLock); err != nil {
		return nil, err
	}
	c := ctx.cat
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.schemas[name]; exists {
		return nil, hareerr.Newf(hareerr.KindSchemaExists, schemaFqn(name), "schema already exists")
	}
	dir := filepath.Join(c.root, string(name))
	s, err := createSchema(c, name, dir, c.poolCapacity, c.log)
	if err != nil {
		return nil, err
	}
	if err := c.store.putString(string(name), dir); err != nil {
		return nil, hareerr.New(hareerr.KindDataCorruption, schemaFqn(name), err)
	}
	c.schemas[name] = s
	ctx.tx.AddPostRollback(func() {
		c.mu.Lock()
		delete(c.schemas, name)
		_ = c.store.delete(string(name))
		c.mu.Unlock()
		_ = s.close()
		_ = os.RemoveAll(dir)
	})
	return s, nil
}

// DropSchema removes a schema from the catalogue's namespace; its
// files are only deleted once the Tx commits.
func (ctx *CatalogueTx) DropSchema(goCtx context.Context, name SchemaName) error {
	if err := ctx.tx.RequestLock(goCtx, ctx.cat, ExclusiveLock); err != nil {
		return err
	}
	c := ctx.cat
	c.mu.Lock()
	s, ok := c.schemas[name]
	if !ok {
		c.mu.Unlock()
		return hareerr.Newf(hareerr.KindSchemaNotFound, schemaFqn(name), "schema does not exist")
	}
	delete(c.schemas, name)
	if err := c.store.delete(string(name)); err != nil {
		c.mu.Unlock()
		return hareerr.New(hareerr.KindDataCorruption, schemaFqn(name), err)
	}
	c.mu.Unlock()

	ctx.tx.AddPostCommit(func() {
		_ = s.close()
		_ = os.RemoveAll(s.dir)
	})
	ctx.tx.AddPostRollback(func() {
		c.mu.Lock()
		c.schemas[name] = s
		_ = c.store.putString(string(name), s.dir)
		c.mu.Unlock()
	})
	return nil
}
