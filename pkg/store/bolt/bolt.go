// Package bolt persists the message revision log and the submitted-order
// audit log in a single bolt file. Bolt commits every update transaction
// with an fsync, which is what makes the message log safe against a crash
// between "record new" and "submit orders".
package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/boltdb/bolt"
	"github.com/mvberkel/pipster/pkg/order"
	"github.com/mvberkel/pipster/pkg/signal"
)

var (
	messagesBucket = []byte("messages")
	ordersBucket   = []byte("orders")
)

type Store struct {
	db *bolt.DB
}

func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: couldn't open bolt db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(messagesBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(ordersBucket); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) RecordNew(id, text string) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		if b.Get([]byte(id)) != nil {
			return signal.ErrDuplicate
		}
		byt, err := json.Marshal([]string{text})
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return b.Put([]byte(id), byt)
	}); err != nil {
		if err == signal.ErrDuplicate {
			return err
		}
		return fmt.Errorf("bolt: couldn't record message %s: %w", id, err)
	}
	return nil
}

func (s *Store) RecordEdit(id, text string) (signal.Outcome, string, error) {
	outcome := signal.Untracked
	var previous string
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		var versions []string
		if err := json.Unmarshal(v, &versions); err != nil {
			return fmt.Errorf("couldn't decode: %w", err)
		}
		last := versions[len(versions)-1]
		if last == text {
			outcome = signal.Unchanged
			return nil
		}
		outcome = signal.Revised
		previous = last
		versions = append(versions, text)
		byt, err := json.Marshal(versions)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return b.Put([]byte(id), byt)
	}); err != nil {
		return signal.Untracked, "", fmt.Errorf("bolt: couldn't record edit %s: %w", id, err)
	}
	return outcome, previous, nil
}

func (s *Store) Latest(id string) (string, bool, error) {
	var text string
	var ok bool
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(messagesBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		var versions []string
		if err := json.Unmarshal(v, &versions); err != nil {
			return fmt.Errorf("couldn't decode: %w", err)
		}
		text = versions[len(versions)-1]
		ok = true
		return nil
	}); err != nil {
		return "", false, fmt.Errorf("bolt: couldn't get message %s: %w", id, err)
	}
	return text, ok, nil
}

func (s *Store) Append(at time.Time, subs []*order.Submission) error {
	key := []byte(strconv.FormatInt(at.UTC().UnixNano(), 10))
	if err := s.db.Update(func(tx *bolt.Tx) error {
		byt, err := json.Marshal(subs)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return tx.Bucket(ordersBucket).Put(key, byt)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put %s: %w", key, err)
	}
	return nil
}

// List returns audit entries submitted within the time range, oldest first.
func (s *Store) List(from, to time.Time) ([][]*order.Submission, error) {
	var out [][]*order.Submission
	if err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(ordersBucket).Cursor()
		min := []byte(strconv.FormatInt(from.UTC().UnixNano(), 10))
		max := []byte(strconv.FormatInt(to.UTC().UnixNano(), 10))
		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var subs []*order.Submission
			if err := json.Unmarshal(v, &subs); err != nil {
				return fmt.Errorf("couldn't decode: %w", err)
			}
			out = append(out, subs)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't query: %w", err)
	}
	return out, nil
}
