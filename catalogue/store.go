package catalogue

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"hareql.dev/hareerr"
)

// nameStore is the small embedded-KV registry backing catalogue.db
// (root: schemaName → schemaPath) and every schema/entity's index.db
// (entityName → entityPath; columnName → columnMeta), per spec.md §6
// "Catalogue on-disk layout". bbolt is the teacher's own embedded-KV
// dependency (db/bolt/bolt.go); a handful of name→path records is
// exactly the shape it's built for, distinct from the hand-rolled
// page layer that stores the column data itself.
type nameStore struct {
	db     *bbolt.DB
	bucket []byte
}

var storeBucket = []byte("names")

func openNameStore(path string) (*nameStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, hareerr.New(hareerr.KindFileLocked, path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(storeBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, hareerr.New(hareerr.KindDataCorruption, path, err)
	}
	return &nameStore{db: db, bucket: storeBucket}, nil
}

func (s *nameStore) putString(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), []byte(value))
	})
}

func (s *nameStore) putJSON(key string, value any) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

func (s *nameStore) getString(key string) (string, bool, error) {
	var v string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket).Get([]byte(key))
		if b != nil {
			v = string(b)
			found = true
		}
		return nil
	})
	return v, found, err
}

func (s *nameStore) getJSON(key string, out any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket).Get([]byte(key))
		if b == nil {
			return nil
		}
		found = true
		return json.Unmarshal(b, out)
	})
	return found, err
}

func (s *nameStore) delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *nameStore) listStrings() (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			out[string(k)] = string(v)
		}
		return nil
	})
	return out, err
}

func (s *nameStore) listJSON(factory func() any, onEach func(key string, v any)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			item := factory()
			if err := json.Unmarshal(v, item); err != nil {
				return err
			}
			onEach(string(k), item)
		}
		return nil
	})
}

func (s *nameStore) close() error { return s.db.Close() }
