package storage

import (
	"encoding/binary"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"leadsdash/utils"
)

// BoltStorage implements fiber.Storage on top of a bbolt bucket. Each value
// is prefixed with its expiry as unix nanoseconds (0 = never).
type BoltStorage struct {
	db     *bbolt.DB
	bucket []byte
	now    func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewBoltStorage wraps db. Expired entries are swept every gcInterval; a zero
// interval disables the sweeper.
func NewBoltStorage(db *bbolt.DB, gcInterval time.Duration) *BoltStorage {
	s := &BoltStorage{
		db:     db,
		bucket: []byte(SessionsBucket),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if gcInterval > 0 {
		go s.gcLoop(gcInterval)
	} else {
		close(s.done)
	}
	return s
}

// Get returns nil, nil for missing or expired keys
func (s *BoltStorage) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		value, ok := s.decode(raw)
		if !ok {
			return nil
		}
		out = append([]byte(nil), value...)
		return nil
	})
	return out, err
}

// Set stores val under key for exp (0 = no expiry)
func (s *BoltStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}

	var expiresAt int64
	if exp > 0 {
		expiresAt = s.now().Add(exp).UnixNano()
	}

	buf := make([]byte, 8+len(val))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], val)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

// Delete removes key
func (s *BoltStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Reset removes every key
func (s *BoltStorage) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

// Close stops the sweeper and closes the database
func (s *BoltStorage) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return s.db.Close()
}

func (s *BoltStorage) decode(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiresAt != 0 && s.now().UnixNano() >= expiresAt {
		return nil, false
	}
	return raw[8:], true
}

func (s *BoltStorage) gcLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.gc(); err != nil {
				utils.Log.Warn("session storage sweep failed: %v", err)
			}
		case <-s.stop:
			return
		}
	}
}

// gc deletes expired entries
func (s *BoltStorage) gc() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if _, ok := s.decode(v); !ok {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
