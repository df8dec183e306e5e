package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketPending = []byte("pending_mutations")

// Journal is the dead-letter log for index mutations that could not be
// applied. Entries are kept in submission order under monotonically
// increasing keys and replayed by the synchronizer's sweep.
type Journal struct {
	db *bolt.DB
}

// OpenJournal opens or creates the journal database at the given path.
func OpenJournal(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPending)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the journal database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores a failed mutation for later replay.
func (j *Journal) Append(m Mutation) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("allocate journal sequence: %w", err)
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal mutation: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// Len reports how many mutations are waiting for replay.
func (j *Journal) Len() (int, error) {
	var n int
	err := j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketPending).Stats().KeyN
		return nil
	})
	return n, err
}

// Replay feeds each pending mutation to apply in submission order,
// removing the ones that succeed. The first failure stops the replay so
// ordering is preserved across sweeps.
func (j *Journal) Replay(apply func(Mutation) error) (int, error) {
	type entry struct {
		key []byte
		m   Mutation
	}

	var entries []entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(k, v []byte) error {
			var m Mutation
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("unmarshal mutation %x: %w", k, err)
			}
			entries = append(entries, entry{key: append([]byte(nil), k...), m: m})
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, e := range entries {
		if err := apply(e.m); err != nil {
			return replayed, err
		}
		if err := j.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketPending).Delete(e.key)
		}); err != nil {
			return replayed, fmt.Errorf("remove replayed mutation: %w", err)
		}
		replayed++
	}
	return replayed, nil
}
