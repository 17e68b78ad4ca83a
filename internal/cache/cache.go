// Package cache persists the scanned entry catalog and launch history
// between daemon runs so startup can serve a catalog before the first
// full scan completes. Backed by a single bbolt file under the data dir.
package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/errors"
)

// schemaVersion is bumped whenever the persisted record layout changes.
// A mismatch discards the cache; the next full scan rebuilds it.
const schemaVersion uint32 = 1

// recordVersion guards the per-entry binary record layout.
const recordVersion byte = 1

var (
	bucketMeta    = []byte("meta")
	bucketEntries = []byte("entries")
	bucketHistory = []byte("history")

	keySchemaVersion = []byte("schema_version")
)

// Cache is the persisted entry catalog. Safe for concurrent use; bbolt
// serializes writers internally.
type Cache struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens (or creates) the cache file and verifies the schema
// version. A version mismatch is not an error: the stale buckets are
// dropped, a warning is logged, and the caller proceeds to a full scan.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeCacheCorrupt, "cannot create cache directory", err).
			WithDetail("path", path)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.New(errors.ErrCodeCacheCorrupt, "cannot open cache file", err).
			WithDetail("path", path)
	}

	c := &Cache{db: db, logger: logger}
	if err := c.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) ensureSchema() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}

		stored := meta.Get(keySchemaVersion)
		if stored != nil && binary.BigEndian.Uint32(stored) != schemaVersion {
			c.logger.Warn("cache schema version mismatch, discarding cache",
				slog.String("error_code", errors.ErrCodeCacheVersion),
				slog.Uint64("stored", uint64(binary.BigEndian.Uint32(stored))),
				slog.Uint64("expected", uint64(schemaVersion)))
			if err := dropIfExists(tx, bucketEntries); err != nil {
				return err
			}
			if err := dropIfExists(tx, bucketHistory); err != nil {
				return err
			}
		}

		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], schemaVersion)
		if err := meta.Put(keySchemaVersion, buf[:]); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(bucketHistory)
		return err
	})
}

func dropIfExists(tx *bolt.Tx, name []byte) error {
	if tx.Bucket(name) == nil {
		return nil
	}
	return tx.DeleteBucket(name)
}

// LoadEntries reads all cached entries. A corrupt record discards the
// entire entries bucket and returns an empty catalog; the caller falls
// back to a full scan.
func (c *Cache) LoadEntries() ([]*entry.Entry, error) {
	var out []*entry.Entry
	var corrupt bool

	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			e, err := decodeEntry(v)
			if err != nil {
				c.logger.Warn("corrupt cache record, discarding cache",
					slog.String("path", string(k)),
					slog.String("error", err.Error()))
				corrupt = true
				return errStopIteration
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil && err != errStopIteration {
		return nil, errors.New(errors.ErrCodeCacheCorrupt, "cache read failed", err)
	}

	if corrupt {
		if err := c.reset(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return out, nil
}

var errStopIteration = errors.New(errors.ErrCodeCacheCorrupt, "stop iteration", nil)

// SaveEntries replaces the cached catalog in one transaction.
func (c *Cache) SaveEntries(entries []*entry.Entry) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := dropIfExists(tx, bucketEntries); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketEntries)
		if err != nil {
			return err
		}
		for _, e := range entries {
			rec, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(e.SourcePath), rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(errors.ErrCodeCacheCorrupt, "cache write failed", err)
	}
	return nil
}

// LoadHistory reads the persisted launch-bias map keyed by entry ID.
func (c *Cache) LoadHistory() (map[string]float64, error) {
	out := make(map[string]float64)
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHistory).ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return nil
			}
			out[string(k)] = math.Float64frombits(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err != nil {
		return nil, errors.New(errors.ErrCodeCacheCorrupt, "history read failed", err)
	}
	return out, nil
}

// SaveHistory replaces the persisted launch-bias map.
func (c *Cache) SaveHistory(bias map[string]float64) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := dropIfExists(tx, bucketHistory); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketHistory)
		if err != nil {
			return err
		}
		var buf [8]byte
		for id, v := range bias {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
			if err := b.Put([]byte(id), buf[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(errors.ErrCodeCacheCorrupt, "history write failed", err)
	}
	return nil
}

// reset drops and recreates the entries bucket.
func (c *Cache) reset() error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if err := dropIfExists(tx, bucketEntries); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketEntries)
		return err
	})
	if err != nil {
		return errors.New(errors.ErrCodeCacheCorrupt, "cache reset failed", err)
	}
	return nil
}

// Binary record layout: 2-byte magic, 1-byte record version, gob payload.
const recordMagic uint16 = 0x4C43 // "LC"

func encodeEntry(e *entry.Entry) ([]byte, error) {
	var buf bytes.Buffer
	var hdr [3]byte
	binary.BigEndian.PutUint16(hdr[:2], recordMagic)
	hdr[2] = recordVersion
	buf.Write(hdr[:])
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(rec []byte) (*entry.Entry, error) {
	if len(rec) < 3 || binary.BigEndian.Uint16(rec[:2]) != recordMagic || rec[2] != recordVersion {
		return nil, errors.New(errors.ErrCodeCacheCorrupt, "bad record header", nil)
	}
	var e entry.Entry
	if err := gob.NewDecoder(bytes.NewReader(rec[3:])).Decode(&e); err != nil {
		return nil, errors.New(errors.ErrCodeCacheCorrupt, "record decode failed", err)
	}
	return &e, nil
}
