// Package catalog holds the persisted list of published photos.
//
// The file is a YAML sequence of records, loaded in full at the start of a
// run, extended in memory and rewritten once at the end.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Skryldev/photosync/errors"
)

// Record describes one published photo.  ContentHash is the primary key.
type Record struct {
	Description  string     `yaml:"description"`
	Location     string     `yaml:"location"`
	OriginalURL  string     `yaml:"original_url"`
	OriginalName string     `yaml:"original_name"`
	Date         *Timestamp `yaml:"date"`
	Tags         string     `yaml:"tags"`
	Name         string     `yaml:"name"`
	ContentHash  string     `yaml:"sha256_hash"`

	// Extra keeps keys this tool does not know about, such as fields an
	// editor added by hand.  Values stay as nodes so their text and style are
	// written back as read.
	Extra map[string]yaml.Node `yaml:",inline"`
}

// Catalog is an ordered, hash-indexed collection of records.  Reads are safe
// from many goroutines; Append must come from a single writer.
type Catalog struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Load reads the catalog at path.  A missing or empty file yields an empty
// catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "catalog.load", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryCatalogFormat, "catalog.load",
			fmt.Errorf("%s: %w", path, err))
	}
	return c, nil
}

// Parse decodes catalog YAML.  Blank input, null and an empty sequence are all
// an empty catalog.
func Parse(data []byte) (*Catalog, error) {
	c := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, r := range records {
		c.add(r)
	}
	return c, nil
}

// add appends without the duplicate check.  Existing files are taken as they
// are: on a repeated hash the first record stays authoritative for lookups.
func (c *Catalog) add(r Record) {
	if _, dup := c.index[r.ContentHash]; !dup && r.ContentHash != "" {
		c.index[r.ContentHash] = len(c.records)
	}
	c.records = append(c.records, r)
}

// FindByHash returns the record with the given content hash.
func (c *Catalog) FindByHash(hash string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[hash]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Append adds r at the end.  A record whose hash is already present is
// rejected with ErrDuplicateHash and the catalog is left unchanged.
func (c *Catalog) Append(r Record) error {
	if r.ContentHash == "" {
		return apperrors.New(apperrors.CategoryInput, "catalog.append", errors.New("record has no content hash"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.index[r.ContentHash]; dup {
		return apperrors.New(apperrors.CategoryInput, "catalog.append",
			fmt.Errorf("%s: %w", r.ContentHash, apperrors.ErrDuplicateHash))
	}
	c.add(r)
	return nil
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns a copy of all records in file order.
func (c *Catalog) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Marshal encodes the catalog as YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records := c.records
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the whole catalog to path.  The file is replaced atomically; on
// failure the previous file and the in-memory state are untouched, so Save can
// be retried.
func (c *Catalog) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "catalog.encode", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "catalog.save", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	perm := fs.FileMode(0o644)
	if fi, statErr := os.Stat(path); statErr == nil {
		perm = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
