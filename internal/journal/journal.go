package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"equiminer/internal/miner"
)

var (
	sharesBucket      = []byte("Shares")
	submissionsBucket = []byte("Submissions")
)

// ErrNotFound is returned when a journal entry does not exist
var ErrNotFound = errors.New("journal entry not found")

// Record is one journaled submission
type Record struct {
	Seq        uint64    `json:"seq"`
	JobID      string    `json:"job_id"`
	Time       string    `json:"time"`
	Nonce      string    `json:"nonce"`
	Solution   string    `json:"solution"`
	Nonce1Size int       `json:"nonce1_size"`
	FoundAt    time.Time `json:"found_at"`
}

// Journal persists share keys and submitted solutions in a bbolt database.
// It serves as the pool-side duplicate registry and as the miner's record
// of what it has handed to the sink.
type Journal struct {
	db *bbolt.DB
}

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(sharesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(submissionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debugf("Journal opened at %s", path)
	return &Journal{db: db}, nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Register implements miner.Registry. The check and the insert happen in
// one write transaction.
func (j *Journal) Register(key string) (bool, error) {
	fresh := false
	err := j.db.Update(func(tx *bbolt.Tx) error {
		var err error
		fresh, err = registerTx(tx, key)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to register share: %w", err)
	}
	return fresh, nil
}

func registerTx(tx *bbolt.Tx, key string) (bool, error) {
	b := tx.Bucket(sharesBucket)
	if b == nil {
		return false, fmt.Errorf("bucket %s not found", sharesBucket)
	}
	if b.Get([]byte(key)) != nil {
		return false, nil
	}
	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, uint64(time.Now().Unix()))
	return true, b.Put([]byte(key), stamp)
}

// ShareCount returns the number of registered share keys
func (j *Journal) ShareCount() int {
	n := 0
	j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(sharesBucket).Stats().KeyN
		return nil
	})
	return n
}

// Append journals sub and returns its sequence number
func (j *Journal) Append(sub miner.Submission) (uint64, error) {
	var seq uint64
	err := j.db.Update(func(tx *bbolt.Tx) error {
		var err error
		seq, err = appendTx(tx, sub)
		return err
	})
	return seq, err
}

// RegisterAndAppend registers key and journals sub in a single write
// transaction. A known key leaves the journal untouched and reports
// fresh == false; a failed append leaves key unregistered.
func (j *Journal) RegisterAndAppend(key string, sub miner.Submission) (seq uint64, fresh bool, err error) {
	err = j.db.Update(func(tx *bbolt.Tx) error {
		var err error
		if fresh, err = registerTx(tx, key); err != nil || !fresh {
			return err
		}
		seq, err = appendTx(tx, sub)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return seq, fresh, nil
}

func appendTx(tx *bbolt.Tx, sub miner.Submission) (uint64, error) {
	b := tx.Bucket(submissionsBucket)
	if b == nil {
		return 0, fmt.Errorf("bucket %s not found", submissionsBucket)
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	rec := Record{
		Seq:        seq,
		JobID:      sub.JobID,
		Time:       sub.Solution.Time,
		Nonce:      sub.Solution.Nonce.Hex(),
		Solution:   fmt.Sprintf("%x", sub.Solution.Solution),
		Nonce1Size: sub.Solution.Nonce1Size,
		FoundAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}
	return seq, b.Put(seqKey(seq), data)
}

// Get returns the record with sequence number seq
func (j *Journal) Get(seq uint64) (*Record, error) {
	var rec *Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(submissionsBucket).Get(seqKey(seq))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, seq)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) ([]Record, error) {
	var out []Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(submissionsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
