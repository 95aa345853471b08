package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"hareql.dev/hareerr"
)

// Schema is a namespace of entities, one directory under the
// catalogue root, mirroring spec.md §3's three-level hierarchy
// (catalogue → schema → entity).
type Schema struct {
	name   SchemaName
	dir    string
	parent *Catalogue

	closeLock sync.RWMutex
	store     *nameStore // entityName -> dir path

	mu       sync.RWMutex
	entities map[EntityName]*Entity

	poolCapacity int
	log          *logrus.Entry
}

func createSchema(cat *Catalogue, name SchemaName, dir string, poolCapacity int, log *logrus.Entry) (*Schema, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, hareerr.New(hareerr.KindDataCorruption, schemaFqn(name), err)
	}
	store, err := openNameStore(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}
	return &Schema{
		name:         name,
		dir:          dir,
		parent:       cat,
		store:        store,
		entities:     make(map[EntityName]*Entity),
		poolCapacity: poolCapacity,
		log:          log,
	}, nil
}

func openSchema(cat *Catalogue, name SchemaName, dir string, poolCapacity int, log *logrus.Entry) (*Schema, error) {
	store, err := openNameStore(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}
	s := &Schema{
		name:         name,
		dir:          dir,
		parent:       cat,
		store:        store,
		entities:     make(map[EntityName]*Entity),
		poolCapacity: poolCapacity,
		log:          log,
	}
	names, err := store.listStrings()
	if err != nil {
		return nil, hareerr.New(hareerr.KindDataCorruption, schemaFqn(name), err)
	}
	for entName, entDir := range names {
		e, err := openEntity(s, EntityName(entName), entDir, poolCapacity, log)
		if err != nil {
			return nil, err
		}
		s.entities[EntityName(entName)] = e
	}
	return s, nil
}

func (s *Schema) Name() SchemaName { return s.name }

func (s *Schema) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, e := range s.entities {
		if err := e.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.store.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SchemaTx is the transactional view of a Schema.
type SchemaTx struct {
	tx     *Tx
	schema *Schema
}

func (s *Schema) NewTx(ctx context.Context, tx *Tx, mode LockMode) (*SchemaTx, error) {
	if err := tx.RequestLock(ctx, s, mode); err != nil {
		return nil, err
	}
	return &SchemaTx{tx: tx, schema: s}, nil
}

func (stx *SchemaTx) ListEntities() []EntityName {
	s := stx.schema
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EntityName, 0, len(s.entities))
	for n := range s.entities {
		out = append(out, n)
	}
	return out
}

func (stx *SchemaTx) EntityForName(name EntityName) (*Entity, bool) {
	s := stx.schema
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[name]
	return e, ok
}

// CreateEntity creates a new entity with the given columns, registers
// its path in the schema's nameStore, and rolls the directory back on
// any later failure in the same Tx (spec.md §3's create/drop
// lifecycle).
func (stx *SchemaTx) CreateEntity(ctx context.Context, name EntityName, columns []ColumnDef) (*Entity, error) {
	if err := stx.tx.RequestLock(ctx, stx.schema, ExclusiveLock); err != nil {
		return nil, err
	}
	s := stx.schema
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[name]; exists {
		return nil, hareerr.Newf(hareerr.KindEntityExists, entityFqn(s.name, name), "entity already exists")
	}
	dir := filepath.Join(s.dir, string(name))
	e, err := createEntity(s, name, dir, columns, s.poolCapacity, s.log)
	if err != nil {
		return nil, err
	}
	if err := s.store.putString(string(name), dir); err != nil {
		return nil, hareerr.New(hareerr.KindDataCorruption, entityFqn(s.name, name), err)
	}
	s.entities[name] = e
	stx.tx.AddPostRollback(func() {
		s.mu.Lock()
		delete(s.entities, name)
		_ = s.store.delete(string(name))
		s.mu.Unlock()
		_ = e.close()
		_ = os.RemoveAll(dir)
	})
	return e, nil
}

// DropEntity removes an entity from the schema's namespace. Its
// underlying files are closed and its directory removed only on commit
// (via a post-commit hook), so a rollback sees the entity's files
// untouched.
func (stx *SchemaTx) DropEntity(ctx context.Context, name EntityName) error {
	if err := stx.tx.RequestLock(ctx, stx.schema, ExclusiveLock); err != nil {
		return err
	}
	s := stx.schema
	s.mu.Lock()
	e, ok := s.entities[name]
	if !ok {
		s.mu.Unlock()
		return hareerr.Newf(hareerr.KindEntityNotFound, entityFqn(s.name, name), "entity does not exist")
	}
	delete(s.entities, name)
	if err := s.store.delete(string(name)); err != nil {
		s.mu.Unlock()
		return hareerr.New(hareerr.KindDataCorruption, entityFqn(s.name, name), err)
	}
	s.mu.Unlock()

	stx.tx.AddPostCommit(func() {
		_ = e.close()
		_ = os.RemoveAll(e.dir)
	})
	stx.tx.AddPostRollback(func() {
		s.mu.Lock()
		s.entities[name] = e
		_ = s.store.putString(string(name), e.dir)
		s.mu.Unlock()
	})
	return nil
}
