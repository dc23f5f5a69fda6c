package statestore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ruteri/slb-bond-backend/interfaces"
	"go.etcd.io/bbolt"
)

var (
	bucketState   = []byte("state")
	bucketHistory = []byte("history")
	bucketMeta    = []byte("meta")

	keySnapshot    = []byte("snapshot")
	keySeq         = []byte("seq")
	keyJournalHead = []byte("journal_head")
)

// ErrStaleSequence is returned when a snapshot does not advance the stored sequence.
var ErrStaleSequence = errors.New("snapshot sequence does not advance")

// BoltStore persists contract snapshots in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ interfaces.StateStore = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("statestore: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("statestore: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketState, bucketHistory, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Load returns the latest snapshot.
func (s *BoltStore) Load(ctx context.Context) ([]byte, error) {
	var snapshot []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketState).Get(keySnapshot)
		if data == nil {
			return interfaces.ErrStateNotFound
		}
		// bbolt memory is only valid inside the transaction
		snapshot = append([]byte(nil), data...)
		return nil
	})
	return snapshot, err
}

// Save stores snapshot as the latest state and appends it to the history.
// seq must be greater than the stored sequence.
func (s *BoltStore) Save(ctx context.Context, seq uint64, snapshot []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		state := tx.Bucket(bucketState)
		if prev := state.Get(keySeq); prev != nil && binary.BigEndian.Uint64(prev) >= seq {
			return fmt.Errorf("%w: stored %d, got %d", ErrStaleSequence, binary.BigEndian.Uint64(prev), seq)
		}

		if err := state.Put(keySnapshot, snapshot); err != nil {
			return fmt.Errorf("statestore: put snapshot: %w", err)
		}
		if err := state.Put(keySeq, seqKey(seq)); err != nil {
			return fmt.Errorf("statestore: put sequence: %w", err)
		}
		if err := tx.Bucket(bucketHistory).Put(seqKey(seq), snapshot); err != nil {
			return fmt.Errorf("statestore: put history: %w", err)
		}
		return nil
	})
}

// Seq returns the sequence number of the latest snapshot.
func (s *BoltStore) Seq() (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketState).Get(keySeq)
		if data == nil {
			return interfaces.ErrStateNotFound
		}
		seq = binary.BigEndian.Uint64(data)
		return nil
	})
	return seq, err
}

// At returns the snapshot committed with sequence number seq.
func (s *BoltStore) At(seq uint64) ([]byte, error) {
	var snapshot []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketHistory).Get(seqKey(seq))
		if data == nil {
			return fmt.Errorf("%w: sequence %d", interfaces.ErrStateNotFound, seq)
		}
		snapshot = append([]byte(nil), data...)
		return nil
	})
	return snapshot, err
}

// LoadHead returns the last journal entry id recorded with SaveHead.
func (s *BoltStore) LoadHead(ctx context.Context) (interfaces.ContentID, error) {
	var head interfaces.ContentID
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyJournalHead)
		if data == nil {
			return nil
		}
		parsed, err := interfaces.NewContentIDFromBytes(data)
		if err != nil {
			return fmt.Errorf("statestore: journal head: %w", err)
		}
		head = parsed
		return nil
	})
	return head, err
}

// SaveHead records the id of the latest journal entry.
func (s *BoltStore) SaveHead(ctx context.Context, head interfaces.ContentID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyJournalHead, head.Bytes())
	})
}
