// Package state persists durable client-side state: the session credentials
// and the offline operation queue live in a single bbolt file; the exported
// master key lives in a separate session-scoped file.
package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	bucketQueue   = []byte("queue")
)

const credentialsKey = "credentials"

// Bolt is the durable client store.
type Bolt struct{ db *bbolt.DB }

// Open opens (creating if needed) the store at path with 0600 permissions.
func Open(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSession, bucketQueue} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying database.
func (b *Bolt) Close() error { return b.db.Close() }

// Credentials is the durable part of a session: enough to resume, never
// enough to decrypt (the master key export is stored separately).
type Credentials struct {
	Token  string    `json:"token"`
	Email  string    `json:"email"`
	UserID string    `json:"userId"`
	Saved  time.Time `json:"saved"`
}

// SaveCredentials stores the session credentials.
func (b *Bolt) SaveCredentials(c Credentials) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put([]byte(credentialsKey), raw)
	})
}

// LoadCredentials returns the stored credentials, or nil when none exist.
func (b *Bolt) LoadCredentials() (*Credentials, error) {
	var c *Credentials
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketSession).Get([]byte(credentialsKey))
		if raw == nil {
			return nil
		}
		c = &Credentials{}
		return json.Unmarshal(raw, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCredentials removes the stored credentials.
func (b *Bolt) DeleteCredentials() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete([]byte(credentialsKey))
	})
}

// QueuedOp is one mutation recorded while offline, pending replay.
type QueuedOp struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// Enqueue appends an operation to the queue in FIFO order.
func (b *Bolt) Enqueue(op QueuedOp) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketQueue)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return bkt.Put(key[:], raw)
	})
}

// Pending returns queued operations in FIFO order.
func (b *Bolt) Pending() ([]QueuedOp, error) {
	var ops []QueuedOp
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, v []byte) error {
			var op QueuedOp
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// Remove deletes a single queued operation by its generated ID.
func (b *Bolt) Remove(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketQueue)
		c := bkt.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var op QueuedOp
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			if op.ID == id {
				return bkt.Delete(k)
			}
		}
		return fmt.Errorf("queued op %s: not found", id)
	})
}

// ClearQueue drops all queued operations.
func (b *Bolt) ClearQueue() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketQueue); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketQueue)
		return err
	})
}
