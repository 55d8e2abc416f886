package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func noticeNames(notices []notice) []string {
	names := make([]string, len(notices))
	for i, n := range notices {
		names[i] = n.name
	}
	return names
}

func TestIsNoticeFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"menu.pdf", true},
		{"MENU.PDF", true},
		{"Fire Drill.Pdf", true},
		{".hidden.pdf", false},
		{"notes.md", false},
		{"pdf", false},
		{"archive.pdf.zip", false},
	}
	for _, tt := range tests {
		if got := isNoticeFile(tt.name); got != tt.want {
			t.Errorf("isNoticeFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScanNoticesSortsByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "A.pdf", "c.PDF", "readme.txt", ".draft.pdf"} {
		writeFile(t, filepath.Join(dir, name), "%PDF-1.4")
	}

	notices, err := scanNotices(scanOptions{dir: dir, sortOrder: sortByName})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	want := []string{"A.pdf", "b.pdf", "c.PDF"}
	if diff := cmp.Diff(want, noticeNames(notices)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if notices[0].path != filepath.Join(dir, "A.pdf") || notices[0].dir != dir {
		t.Errorf("notice = %+v", notices[0])
	}
	if notices[0].size != int64(len("%PDF-1.4")) {
		t.Errorf("size = %d", notices[0].size)
	}
}

func TestScanNoticesRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.pdf"), "x")
	writeFile(t, filepath.Join(dir, "floor2", "kitchen.pdf"), "x")
	writeFile(t, filepath.Join(dir, "node_modules", "junk.pdf"), "x")
	writeFile(t, filepath.Join(dir, ".git", "junk.pdf"), "x")

	flat, err := scanNotices(scanOptions{dir: dir})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	if diff := cmp.Diff([]string{"top.pdf"}, noticeNames(flat)); diff != "" {
		t.Errorf("non-recursive (-want +got):\n%s", diff)
	}

	deep, err := scanNotices(scanOptions{dir: dir, recursive: true})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	if diff := cmp.Diff([]string{"kitchen.pdf", "top.pdf"}, noticeNames(deep)); diff != "" {
		t.Errorf("recursive (-want +got):\n%s", diff)
	}
}

func TestScanNoticesExtraFolders(t *testing.T) {
	root := t.TempDir()
	boardDir := filepath.Join(root, "main")
	writeFile(t, filepath.Join(boardDir, "a.pdf"), "x")
	writeFile(t, filepath.Join(root, "shared", "hr", "b.pdf"), "x")
	writeFile(t, filepath.Join(root, "shared", "it", "c.pdf"), "x")
	writeFile(t, filepath.Join(root, "other", "d.pdf"), "x")

	notices, err := scanNotices(scanOptions{
		dir:       boardDir,
		extraGlob: filepath.Join(root, "shared", "*"),
	})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	if diff := cmp.Diff([]string{"a.pdf", "b.pdf", "c.pdf"}, noticeNames(notices)); diff != "" {
		t.Errorf("extra folders (-want +got):\n%s", diff)
	}
}

func TestScanNoticesDeduplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "x")

	notices, err := scanNotices(scanOptions{dir: dir, extraGlob: dir})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	if len(notices) != 1 {
		t.Errorf("got %d notices, want 1: %v", len(notices), noticeNames(notices))
	}
}

func TestScanNoticesSortByModified(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"old.pdf", "newest.pdf", "middle.pdf"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, "x")
		mt := base.Add([]time.Duration{0, 2 * time.Hour, time.Hour}[i])
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	notices, err := scanNotices(scanOptions{dir: dir, sortOrder: sortByModified})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	want := []string{"newest.pdf", "middle.pdf", "old.pdf"}
	if diff := cmp.Diff(want, noticeNames(notices)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestScanNoticesShuffleKeepsSet(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		writeFile(t, filepath.Join(dir, name), "x")
	}
	notices, err := scanNotices(scanOptions{dir: dir, shuffle: true})
	if err != nil {
		t.Fatalf("scanNotices: %v", err)
	}
	sortNotices(notices, sortByName)
	if diff := cmp.Diff([]string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}, noticeNames(notices)); diff != "" {
		t.Errorf("shuffle lost notices (-want +got):\n%s", diff)
	}
}

func TestScanNoticesMissingFolder(t *testing.T) {
	_, err := scanNotices(scanOptions{dir: filepath.Join(t.TempDir(), "gone")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapped ErrNotExist", err)
	}
}

func TestGlobBase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/srv/notices/*", "/srv/notices"},
		{"/srv/**/lobby", "/srv"},
		{"/*", "/"},
		{"rel/dir", "rel/dir"},
		{"*.d", "."},
	}
	for _, tt := range tests {
		if got := globBase(tt.in); got != tt.want {
			t.Errorf("globBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNoticeDisplayName(t *testing.T) {
	n := notice{name: "Fire drill.PDF"}
	if got := n.displayName(); got != "Fire drill" {
		t.Errorf("displayName = %q", got)
	}
	if n.Title() != n.displayName() {
		t.Error("Title should match displayName")
	}
}

// stubSource serves a fixed scan result.
type stubSource struct {
	notices []notice
	err     error
}

func (s *stubSource) scan() ([]notice, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]notice, len(s.notices))
	copy(out, s.notices)
	return out, nil
}

func (s *stubSource) root() string { return "/stub" }

func stubNotices(names ...string) []notice {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]notice, len(names))
	for i, name := range names {
		out[i] = notice{path: "/stub/" + name, dir: "/stub", name: name, modified: t0, created: t0}
	}
	return out
}

func TestCatalogRefreshFailureKeepsSnapshot(t *testing.T) {
	src := &stubSource{notices: stubNotices("a.pdf", "b.pdf")}
	c := newNoticeCatalog(src, nil)
	if err := c.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	src.err = os.ErrPermission
	err := c.Refresh()
	var ce *CatalogError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CatalogError", err)
	}
	if ce.Dir != "/stub" || !errors.Is(err, os.ErrPermission) {
		t.Errorf("CatalogError = %+v", ce)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d after failed refresh, want previous 2", c.Len())
	}
	if c.Err() == nil {
		t.Error("Err should report the failed refresh")
	}

	src.err = nil
	if err := c.Refresh(); err != nil || c.Err() != nil {
		t.Errorf("Refresh = %v, Err = %v after recovery", err, c.Err())
	}
}

func TestCatalogGetClampsAndEmpty(t *testing.T) {
	c := newNoticeCatalog(&stubSource{}, nil)
	if err := c.Refresh(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(0); ok {
		t.Error("Get on empty catalog should report !ok")
	}
	if c.IndexOf("/stub/a.pdf") != -1 {
		t.Error("IndexOf on empty catalog should be -1")
	}

	c.replace(stubNotices("a.pdf", "b.pdf", "c.pdf"))
	if n, _ := c.Get(-5); n.name != "a.pdf" {
		t.Errorf("Get(-5) = %q, want a.pdf", n.name)
	}
	if n, _ := c.Get(99); n.name != "c.pdf" {
		t.Errorf("Get(99) = %q, want c.pdf", n.name)
	}
	if i := c.IndexOf("/stub/b.pdf"); i != 1 {
		t.Errorf("IndexOf = %d, want 1", i)
	}
}

func TestCatalogNoticesIsACopy(t *testing.T) {
	c := newNoticeCatalog(&stubSource{notices: stubNotices("a.pdf")}, nil)
	_ = c.Refresh()
	ns := c.Notices()
	ns[0].name = "changed"
	if n, _ := c.Get(0); n.name != "a.pdf" {
		t.Error("Notices must not expose the catalog's backing slice")
	}
}

func TestCatalogThumbnails(t *testing.T) {
	src := &stubSource{notices: stubNotices("a.pdf", "b.pdf")}
	c := newNoticeCatalog(src, nil)
	_ = c.Refresh()

	mod := src.notices[0].modified.UnixNano()
	if !c.setThumbnail("/stub/a.pdf", mod, "/cache/a.png") {
		t.Fatal("setThumbnail should accept a current card")
	}
	if c.setThumbnail("/stub/b.pdf", mod+1, "/cache/stale.png") {
		t.Error("setThumbnail should ignore a card for an older mtime")
	}

	// Unchanged file keeps its card across a rescan.
	_ = c.Refresh()
	if n, _ := c.Get(0); n.thumbnail != "/cache/a.png" {
		t.Errorf("thumbnail = %q after rescan, want kept", n.thumbnail)
	}

	// An edited file loses it.
	src.notices[0].modified = src.notices[0].modified.Add(time.Minute)
	_ = c.Refresh()
	if n, _ := c.Get(0); n.thumbnail != "" {
		t.Errorf("thumbnail = %q after edit, want cleared", n.thumbnail)
	}
}
