// Package boltdb provides a tripdk.BatchSink which persists processed
// records to a local BoltDB file. It is the reference storage consumer for
// the pipeline: batches land in one bucket keyed by record number, so an
// import can be inspected or replayed without any external service.
package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var tripsBucket = []byte("trips")

// Sink writes batches of processed records to a bolt bucket. Safe for use
// from the single pipeline goroutine; bolt serializes writers internally
// anyway.
type Sink struct {
	db *bolt.DB
}

// NewSink opens (creating if needed) the bolt file at filename and prepares
// the trips bucket.
func NewSink(filename string) (*Sink, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	s := &Sink{db: db}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tripsBucket)
		return errors.Wrap(err, "creating trips bucket")
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Batch implements tripdk.BatchSink: each record in the batch is JSON
// encoded and stored under the next big-endian record number. The whole
// batch commits in one transaction.
func (s *Sink) Batch(records []map[string]interface{}, batchNum int) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tripsBucket)
		for _, rec := range records {
			id, err := b.NextSequence()
			if err != nil {
				return errors.Wrap(err, "allocating record id")
			}
			val, err := json.Marshal(rec)
			if err != nil {
				return errors.Wrap(err, "encoding record")
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, id)
			if err := b.Put(key, val); err != nil {
				return errors.Wrap(err, "storing record")
			}
		}
		return nil
	})
	return errors.Wrapf(err, "writing batch %d", batchNum)
}

// Count returns the number of records stored.
func (s *Sink) Count() (n int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(tripsBucket).Stats().KeyN
		return nil
	})
	return n, errors.Wrap(err, "counting records")
}

// Each calls fn for every stored record in key order, decoding it first.
func (s *Sink) Each(fn func(id uint64, rec map[string]interface{}) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tripsBucket).ForEach(func(k, v []byte) error {
			var rec map[string]interface{}
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrap(err, "decoding record")
			}
			return fn(binary.BigEndian.Uint64(k), rec)
		})
	})
}

// Close syncs and closes the underlying boltdb.
func (s *Sink) Close() error {
	if err := s.db.Sync(); err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return s.db.Close()
}
