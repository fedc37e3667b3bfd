package kv

import (
	"os"
	"path"
	"time"

	"github.com/boltdb/bolt"
	"github.com/mdlayher/prombolt"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const databaseFileName = "slasher.db"

// Store is the boltdb-backed persistence layer satisfying slasher.Database.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// NewKVStore opens (creating if absent) a boltdb database at dirPath,
// ensures every bucket slasher needs exists, and registers its page and
// transaction metrics with the default Prometheus registry.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	db, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	store := &Store{db: db, databasePath: dirPath}
	if err := store.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			minTargetChunksBucket,
			maxTargetChunksBucket,
			attesterRecordsBucket,
			lastEpochWrittenBucket,
		)
	}); err != nil {
		return nil, err
	}

	if err := prometheus.Register(createBoltCollector(store.db)); err != nil {
		return nil, err
	}
	return store, nil
}

// Close flushes and closes the underlying boltdb database.
func (s *Store) Close() error {
	prometheus.Unregister(createBoltCollector(s.db))
	return s.db.Close()
}

// DatabasePath reports the directory this store writes files under.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

func createBoltCollector(db *bolt.DB) prometheus.Collector {
	return prombolt.New("slasherDB", db)
}
