package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var levelDBPrefix = []byte("run/")

// LevelDBStore keeps run history in a local LevelDB directory. Keys sort by
// completion time, so the newest record is the last key under the prefix.
type LevelDBStore struct {
	mu    sync.Mutex
	db    *leveldb.DB
	size  int
	count int
}

// NewLevelDBStore opens (or creates) the database at path.
func NewLevelDBStore(path string, size int) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb at %s: %w", path, err)
	}
	if size < 1 {
		size = DefaultSize
	}

	s := &LevelDBStore{db: db, size: size}

	iter := db.NewIterator(util.BytesPrefix(levelDBPrefix), nil)
	for iter.Next() {
		s.count++
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counting leveldb records: %w", err)
	}

	return s, nil
}

func levelDBKey(r Record) []byte {
	key := make([]byte, 0, len(levelDBPrefix)+8+len(r.RunID))
	key = append(key, levelDBPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.CompletedAt.UnixNano()))
	return append(key, r.RunID...)
}

func (s *LevelDBStore) Append(_ context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling record %s: %w", r.RunID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := levelDBKey(r)
	exists, err := s.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("checking leveldb record %s: %w", r.RunID, err)
	}

	batch := new(leveldb.Batch)
	batch.Put(key, data)
	if exists {
		// Overwrite in place; the record count does not change.
		if err := s.db.Write(batch, nil); err != nil {
			return fmt.Errorf("writing leveldb record %s: %w", r.RunID, err)
		}
		return nil
	}

	excess := s.count + 1 - s.size
	if excess > 0 {
		iter := s.db.NewIterator(util.BytesPrefix(levelDBPrefix), nil)
		for i := 0; i < excess && iter.Next(); i++ {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return fmt.Errorf("scanning leveldb records: %w", err)
		}
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("writing leveldb record %s: %w", r.RunID, err)
	}
	s.count += 1 - max(excess, 0)
	return nil
}

func (s *LevelDBStore) Recent(_ context.Context, n int) ([]Record, error) {
	if n <= 0 || n > s.size {
		n = s.size
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.NewIterator(util.BytesPrefix(levelDBPrefix), nil)
	defer iter.Release()

	var out []Record
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("reading leveldb records: %w", err)
	}
	return out, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
