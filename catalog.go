package main

import (
	"go.uber.org/zap"
)

// ─── Notice Sources ──────────────────────────────────────────────────────────

// noticeSource abstracts where notices come from so the same catalog logic
// works against a real folder (diskSource) and an in-memory demo set
// (demoSource).
type noticeSource interface {
	scan() ([]notice, error)
	root() string
}

// diskSource scans the configured folders and reads each notice's page
// count.
type diskSource struct {
	opts  scanOptions
	pages *pageCache
}

func newDiskSource(opts scanOptions) diskSource {
	return diskSource{opts: opts, pages: newPageCache()}
}

func (s diskSource) scan() ([]notice, error) {
	notices, err := scanNotices(s.opts)
	if err != nil {
		return nil, err
	}
	s.pages.fill(notices, countPages)
	return notices, nil
}

func (s diskSource) root() string { return s.opts.dir }

// ─── noticeCatalog ───────────────────────────────────────────────────────────

// noticeCatalog owns the ordered notice list. Only the tick loop mutates
// it; background scans hand their result over via replace/apply.
type noticeCatalog struct {
	source  noticeSource
	notices []notice
	lastErr error
	log     *zap.Logger
}

func newNoticeCatalog(src noticeSource, log *zap.Logger) *noticeCatalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &noticeCatalog{source: src, log: log}
}

// Refresh rescans synchronously. On failure the previous snapshot stays and
// a *CatalogError is returned.
func (c *noticeCatalog) Refresh() error {
	notices, err := c.source.scan()
	return c.apply(notices, err)
}

// apply installs a scan result, or records and logs the scan error while
// keeping the last good snapshot.
func (c *noticeCatalog) apply(notices []notice, err error) error {
	if err != nil {
		cerr := &CatalogError{Dir: c.source.root(), Err: err}
		c.lastErr = cerr
		c.log.Warn("catalog refresh failed, keeping previous notices",
			zap.String("dir", cerr.Dir),
			zap.Int("kept", len(c.notices)),
			zap.Error(err))
		return cerr
	}
	c.lastErr = nil
	c.replace(notices)
	c.log.Debug("catalog refreshed", zap.String("dir", c.source.root()), zap.Int("notices", len(notices)))
	return nil
}

// replace swaps in a new snapshot, carrying rendered thumbnails over for
// files that have not changed since.
func (c *noticeCatalog) replace(notices []notice) {
	thumbs := make(map[string]notice, len(c.notices))
	for _, n := range c.notices {
		if n.thumbnail != "" {
			thumbs[n.path] = n
		}
	}
	next := make([]notice, len(notices))
	copy(next, notices)
	for i, n := range next {
		if old, ok := thumbs[n.path]; ok && n.thumbnail == "" && old.modified.Equal(n.modified) {
			next[i].thumbnail = old.thumbnail
		}
	}
	c.notices = next
}

// setSource points the catalog at a different folder (config reload, demo
// mode). The caller refreshes afterwards.
func (c *noticeCatalog) setSource(src noticeSource) {
	c.source = src
}

func (c *noticeCatalog) Len() int { return len(c.notices) }

// Get returns the notice at index clamped to the catalog bounds. ok is
// false only when the catalog is empty.
func (c *noticeCatalog) Get(index int) (notice, bool) {
	if len(c.notices) == 0 {
		return notice{}, false
	}
	return c.notices[clamp(index, 0, len(c.notices)-1)], true
}

// IndexOf returns the index of the notice with path, or -1.
func (c *noticeCatalog) IndexOf(path string) int {
	for i, n := range c.notices {
		if n.path == path {
			return i
		}
	}
	return -1
}

// Notices returns a copy of the current snapshot.
func (c *noticeCatalog) Notices() []notice {
	out := make([]notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// Err is the last refresh error, nil after a successful refresh.
func (c *noticeCatalog) Err() error { return c.lastErr }

// setThumbnail records a rendered card for path. Stale results (the file
// changed while rendering) are ignored.
func (c *noticeCatalog) setThumbnail(path string, modified int64, png string) bool {
	for i, n := range c.notices {
		if n.path == path && n.modified.UnixNano() == modified {
			c.notices[i].thumbnail = png
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
