package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"idschooldata/pkg/contracts/domain"
)

// BoltStore keeps entries in a single bbolt file with one bucket per shape,
// keyed by the decimal end year. Each write is one bolt transaction.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database at path
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt cache %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, shape := range []domain.Shape{domain.ShapeWide, domain.ShapeTidy} {
			if _, err := tx.CreateBucketIfNotExists([]byte(shape)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize bolt cache: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func yearKey(endYear int) []byte {
	return []byte(strconv.Itoa(endYear))
}

func (s *BoltStore) Exists(ctx context.Context, endYear int, shape domain.Shape) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(shape)); b != nil {
			ok = b.Get(yearKey(endYear)) != nil
		}
		return nil
	})
	return ok, err
}

func (s *BoltStore) Read(ctx context.Context, endYear int, shape domain.Shape) (*domain.EnrollmentTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(shape))
		if b == nil {
			return nil
		}
		// bolt values are only valid inside the transaction
		if v := b.Get(yearKey(endYear)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return Decode(data)
}

func (s *BoltStore) Write(ctx context.Context, table *domain.EnrollmentTable, endYear int, shape domain.Shape) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(endYear, shape); err != nil {
		return err
	}
	data, err := Encode(table)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(shape))
		if err != nil {
			return err
		}
		return b.Put(yearKey(endYear), data)
	})
}

func (s *BoltStore) Delete(ctx context.Context, endYear int, shape domain.Shape) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(shape))
		if b == nil {
			return nil
		}
		return b.Delete(yearKey(endYear))
	})
}

func (s *BoltStore) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []Key
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, shape := range []domain.Shape{domain.ShapeWide, domain.ShapeTidy} {
			b := tx.Bucket([]byte(shape))
			if b == nil {
				continue
			}
			if err := b.ForEach(func(k, _ []byte) error {
				year, err := strconv.Atoi(string(k))
				if err != nil {
					return nil
				}
				keys = append(keys, Key{EndYear: year, Shape: shape})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortKeys(keys)
	return keys, nil
}

// Close releases the database file lock
func (s *BoltStore) Close() error {
	return s.db.Close()
}
