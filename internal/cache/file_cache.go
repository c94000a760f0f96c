package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/burnsev/internal/properties"
)

type CacheService[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T) error
	GenerateKey(params ...interface{}) string
}

// record is the on-disk layout. Payload stays raw so the digest is checked against
// the exact bytes that were written.
type record struct {
	Stored  time.Time       `json:"stored"`
	Expires time.Time       `json:"expires,omitempty"`
	Digest  string          `json:"digest"`
	Payload json.RawMessage `json:"payload"`
}

func (r record) expired(now time.Time) bool {
	return !r.Expires.IsZero() && now.After(r.Expires)
}

// FileCache keeps one JSON record per key, sharded by the first two key characters.
// Expired or corrupt records are removed on read. A zero ttl never expires.
type FileCache[T any] struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileCache caches under the data directory.
func NewFileCache[T any](subDir string, ttl time.Duration) *FileCache[T] {
	return NewFileCacheAt[T](filepath.Join(properties.DataPath(), subDir), ttl)
}

func NewFileCacheAt[T any](dir string, ttl time.Duration) *FileCache[T] {
	return &FileCache[T]{dir: dir, ttl: ttl, now: time.Now}
}

// GenerateKey hashes the parameters with a separator that cannot collide with
// formatted values, so ("a_b", "c") and ("a", "b_c") differ.
func (fc *FileCache[T]) GenerateKey(params ...interface{}) string {
	h := sha256.New()
	for _, p := range params {
		fmt.Fprintf(h, "%v\x1f", p)
	}
	return hex.EncodeToString(h.Sum(nil))[:40]
}

func (fc *FileCache[T]) path(key string) string {
	shard := "_"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(fc.dir, shard, key+".json")
}

func (fc *FileCache[T]) Get(key string) (T, bool) {
	var zero T
	path := fc.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Digest != digest(rec.Payload) || rec.expired(fc.now()) {
		_ = os.Remove(path)
		return zero, false
	}

	var data T
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		_ = os.Remove(path)
		return zero, false
	}
	return data, true
}

func (fc *FileCache[T]) Set(key string, data T) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	rec := record{Stored: fc.now().UTC(), Digest: digest(payload), Payload: payload}
	if fc.ttl > 0 {
		rec.Expires = rec.Stored.Add(fc.ttl)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	path := fc.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pending-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
