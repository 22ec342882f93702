package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	bolt "go.etcd.io/bbolt"

	"github.com/bassista/go_datastore/internal/record"
)

const backendBolt = "bolt"

var (
	recordsBucket = []byte("records")
	metaBucket    = []byte("meta")
	lastUpdateKey = []byte("lastUpdate")
)

// BoltRepository keeps one JSON value per record in a bbolt bucket keyed by
// record identifier.
type BoltRepository[ID comparable, S record.Identifiable[ID]] struct {
	db        *bolt.DB
	validator *validator.Validate
}

// NewBoltRepository opens or creates the database at path.
func NewBoltRepository[ID comparable, S record.Identifiable[ID]](path string) (*BoltRepository[ID, S], error) {
	if path == "" {
		return nil, errors.New("bolt path is required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, storeErr(backendBolt, "open", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, storeErr(backendBolt, "open", err)
	}
	return &BoltRepository[ID, S]{db: db, validator: validator.New()}, nil
}

// Load reads every record and the saved version.
func (r *BoltRepository[ID, S]) Load(ctx context.Context) (*Document[S], error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr(backendBolt, "load", err)
	}
	doc := &Document[S]{}
	err := r.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get(lastUpdateKey); len(v) == 8 {
			doc.Metadata.LastUpdate = int64(binary.BigEndian.Uint64(v))
		}
		return tx.Bucket(recordsBucket).ForEach(func(k, v []byte) error {
			var s S
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decode record %q: %w", k, err)
			}
			doc.Records = append(doc.Records, s)
			return nil
		})
	})
	if err != nil {
		return nil, storeErr(backendBolt, "load", err)
	}
	doc.ApplyDefaults()
	if err := r.validator.Struct(doc); err != nil {
		return nil, storeErr(backendBolt, "load", fmt.Errorf("validate records: %w", err))
	}
	return doc, nil
}

// Save replaces the bucket content in a single transaction.
func (r *BoltRepository[ID, S]) Save(ctx context.Context, doc *Document[S]) error {
	if doc == nil {
		return storeErr(backendBolt, "save", errors.New("document is nil"))
	}
	if err := ctx.Err(); err != nil {
		return storeErr(backendBolt, "save", err)
	}
	if err := r.validator.Struct(doc); err != nil {
		return storeErr(backendBolt, "save", fmt.Errorf("validate before save: %w", err))
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordsBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(recordsBucket)
		if err != nil {
			return err
		}
		for _, s := range doc.Records {
			v, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("encode record %v: %w", s.RecordID(), err)
			}
			if err := b.Put([]byte(record.Key(s.RecordID())), v); err != nil {
				return err
			}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(doc.Metadata.LastUpdate))
		return tx.Bucket(metaBucket).Put(lastUpdateKey, buf)
	})
	return storeErr(backendBolt, "save", err)
}

// Close closes the underlying database.
func (r *BoltRepository[ID, S]) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
