package cache

import (
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	gcThreshold   = int64(1 << 30)
	gcTickerEvery = time.Minute
)

// BadgerStore is the default embedded driver, adapted from the teacher's
// storage/database/badger_database.go: same directory-bootstrap and
// value-log GC loop, generalized from a chain database to the indexer's
// point-lookup cache.
type BadgerStore struct {
	db       *badger.DB
	gcTicker *time.Ticker
	log      *zap.Logger
	closeCh  chan struct{}
}

// OpenBadger opens (creating if needed) a badger store rooted at dir.
func OpenBadger(dir string, log *zap.Logger) (*BadgerStore, error) {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("cache: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "cache: mkdir %s", dir)
		}
	} else {
		return nil, errors.Wrapf(err, "cache: stat %s", dir)
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: open badger at %s", dir)
	}

	s := &BadgerStore{
		db:       db,
		gcTicker: time.NewTicker(gcTickerEvery),
		log:      log,
		closeCh:  make(chan struct{}),
	}
	go s.runValueLogGC()
	return s, nil
}

func (s *BadgerStore) runValueLogGC() {
	_, lastSize := s.db.Size()
	for {
		select {
		case <-s.closeCh:
			return
		case <-s.gcTicker.C:
			_, currSize := s.db.Size()
			if currSize-lastSize < gcThreshold {
				continue
			}
			if err := s.db.RunValueLogGC(0.5); err != nil {
				s.log.Warn("badger value log gc failed", zap.Error(err))
				continue
			}
			_, lastSize = s.db.Size()
		}
	}
}

func (s *BadgerStore) Put(key, value []byte) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Set(key, value); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (s *BadgerStore) Has(key []byte) (bool, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *BadgerStore) Delete(key []byte) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	if err := txn.Delete(key); err != nil {
		return err
	}
	return txn.Commit(nil)
}

func (s *BadgerStore) Close() error {
	close(s.closeCh)
	s.gcTicker.Stop()
	return s.db.Close()
}
