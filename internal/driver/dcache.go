package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"krait/internal/diag"
	"krait/internal/project"
	"krait/internal/source"
)

// cacheSchema changes whenever CheckPayload does; entries of another schema
// read as misses.
const cacheSchema uint16 = 2

// DiskCache keeps the diagnostics of checked files keyed by a digest of the
// engine version and the file content. Entries live in two-level shards:
// <dir>/checks/ab/cdef....mp.
type DiskCache struct {
	dir string
	mu  sync.RWMutex // Put/Get vs DropAll
}

// CheckPayload is one cache entry.
type CheckPayload struct {
	Schema uint16       `msgpack:"v"`
	Path   string       `msgpack:"p"`
	Diags  []CachedDiag `msgpack:"d,omitempty"`
}

// CachedDiag is a diagnostic stripped of file ids; spans are offsets into
// the file the entry was keyed on.
type CachedDiag struct {
	Severity diag.Severity `msgpack:"s"`
	Code     diag.Code     `msgpack:"c"`
	Start    uint32        `msgpack:"a"`
	End      uint32        `msgpack:"b"`
	Message  string        `msgpack:"m"`
	Notes    []CachedNote  `msgpack:"n,omitempty"`
}

type CachedNote struct {
	Start uint32 `msgpack:"a"`
	End   uint32 `msgpack:"b"`
	Msg   string `msgpack:"m"`
}

// OpenDiskCache opens <user cache dir>/<app>.
func OpenDiskCache(app string) (*DiskCache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache dir: %w", err)
	}
	return NewDiskCache(filepath.Join(base, app))
}

func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) entryPath(key project.Digest) string {
	hex := key.String()
	return filepath.Join(c.dir, "checks", hex[:2], hex[2:]+".mp")
}

// Put stores payload under key. The entry is written to a temporary file
// and renamed into place so readers never see a partial entry. A nil cache
// accepts and drops everything.
func (c *DiskCache) Put(key project.Digest, payload *CheckPayload) error {
	if c == nil {
		return nil
	}
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	dst := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Get loads the entry for key into out. Missing entries and entries of an
// older schema report false with no error.
func (c *DiskCache) Get(key project.Digest, out *CheckPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	data, err := os.ReadFile(c.entryPath(key))
	c.mu.RUnlock()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode cache entry: %w", err)
	}
	return out.Schema == cacheSchema, nil
}

// DropAll empties the cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(c.dir, "checks")); err != nil {
		return fmt.Errorf("drop cache: %w", err)
	}
	return nil
}

func bagToPayload(path string, bag *diag.Bag) *CheckPayload {
	p := &CheckPayload{Schema: cacheSchema, Path: path}
	for _, d := range bag.Items() {
		cd := CachedDiag{
			Severity: d.Severity,
			Code:     d.Code,
			Start:    d.Primary.Start,
			End:      d.Primary.End,
			Message:  d.Message,
		}
		for _, n := range d.Notes {
			cd.Notes = append(cd.Notes, CachedNote{Start: n.Span.Start, End: n.Span.End, Msg: n.Msg})
		}
		p.Diags = append(p.Diags, cd)
	}
	return p
}

// payloadToBag rebinds cached spans to file.
func payloadToBag(p *CheckPayload, file source.FileID, bag *diag.Bag) {
	for _, cd := range p.Diags {
		d := diag.New(cd.Severity, cd.Code, source.Span{File: file, Start: cd.Start, End: cd.End}, cd.Message)
		for _, n := range cd.Notes {
			d = d.WithNote(source.Span{File: file, Start: n.Start, End: n.End}, n.Msg)
		}
		bag.Add(d)
	}
}
