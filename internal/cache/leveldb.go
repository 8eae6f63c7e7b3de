package cache

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is the alternate embedded driver, adapted from the teacher's
// storage/database/leveldb_database.go options profile (bloom filter,
// split block/write-buffer cache sizing) for operators who prefer
// goleveldb's compaction behavior over badger's.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if needed) a goleveldb store at dir. cacheMB
// splits between the block cache and the write buffer the way the
// teacher's getLDBOptions does.
func OpenLevelDB(dir string, cacheMB, numHandles int) (*LevelDBStore, error) {
	if cacheMB < 16 {
		cacheMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}

	options := &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheMB / 2 * opt.MiB,
		WriteBuffer:            cacheMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}

	db, err := leveldb.OpenFile(dir, options)
	if ldberrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cache: open leveldb at %s", dir)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *LevelDBStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *LevelDBStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
