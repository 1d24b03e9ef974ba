// Package prefs persists local user preferences: the peer block list and the
// conversation mute list. These are read/write collaborators of the sync
// engine, never synchronized with the server.
package prefs

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	bucketBlocked = []byte("blocked")
	bucketMuted   = []byte("muted")
)

type record struct {
	ID    string `msgpack:"id"`
	Since int64  `msgpack:"since"`
}

func (r *record) Key() []byte {
	return []byte(r.ID)
}

func (r *record) MarshalBinary() ([]byte, error) {
	type alias record
	return msgpack.Marshal((*alias)(r))
}

func (r *record) UnmarshalBinary(data []byte) error {
	type alias record
	return msgpack.Unmarshal(data, (*alias)(r))
}

type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open prefs db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlocked); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMuted); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) BlockPeer(id string) error {
	return s.put(bucketBlocked, id)
}

func (s *Store) UnblockPeer(id string) error {
	return s.del(bucketBlocked, id)
}

func (s *Store) IsBlocked(id string) bool {
	return s.has(bucketBlocked, id)
}

// BlockedPeers lists all blocked peer ids.
func (s *Store) BlockedPeers() ([]string, error) {
	return s.list(bucketBlocked)
}

func (s *Store) MuteRoom(id string) error {
	return s.put(bucketMuted, id)
}

func (s *Store) UnmuteRoom(id string) error {
	return s.del(bucketMuted, id)
}

func (s *Store) IsMuted(id string) bool {
	return s.has(bucketMuted, id)
}

// MutedRooms lists all muted conversation ids.
func (s *Store) MutedRooms() ([]string, error) {
	return s.list(bucketMuted)
}

func (s *Store) put(bucket []byte, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		rec := &record{ID: id, Since: s.now().Unix()}
		data, err := rec.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal pref record: %w", err)
		}
		return b.Put(rec.Key(), data)
	})
}

func (s *Store) del(bucket []byte, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

func (s *Store) has(bucket []byte, id string) bool {
	found := false
	_ = s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucket).Get([]byte(id)) != nil
		return nil
	})
	return found
}

func (s *Store) list(bucket []byte) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var rec record
			if err := rec.UnmarshalBinary(v); err != nil {
				return err
			}
			ids = append(ids, rec.ID)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
