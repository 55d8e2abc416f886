package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/fsnotify/fsnotify"
)

// tickInterval is the board clock resolution.
const tickInterval = 250 * time.Millisecond

// rendererPool caches glamour renderers keyed by "style:width".
// Each key maps to a sync.Pool so concurrent goroutines get their own instance.
var (
	rendererPoolMu sync.Mutex
	rendererPools  = make(map[string]*sync.Pool)
)

func getRenderer(style string, width int) (*glamour.TermRenderer, error) {
	key := fmt.Sprintf("%s:%d", style, width)
	rendererPoolMu.Lock()
	pool, ok := rendererPools[key]
	if !ok {
		pool = &sync.Pool{}
		rendererPools[key] = pool
	}
	rendererPoolMu.Unlock()

	if r, _ := pool.Get().(*glamour.TermRenderer); r != nil {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create renderer for %s: %w", key, err)
	}
	return r, nil
}

func putRenderer(style string, width int, r *glamour.TermRenderer) {
	key := fmt.Sprintf("%s:%d", style, width)
	rendererPoolMu.Lock()
	pool := rendererPools[key]
	rendererPoolMu.Unlock()
	if pool != nil {
		pool.Put(r)
	}
}

// ─── Commands ────────────────────────────────────────────────────────────────

func glamourRender(markdown, style string, width int) string {
	pw := width - 4
	if pw < 20 {
		pw = 80
	}
	r, err := getRenderer(style, pw)
	if err != nil {
		return markdown
	}
	rendered, err := r.Render(markdown)
	putRenderer(style, pw, r)
	if err != nil {
		return markdown
	}
	return rendered
}

// renderOverlay renders the idle overlay text off the tick loop.
func renderOverlay(markdown, style string, width int) tea.Cmd {
	return func() tea.Msg {
		return overlayRenderedMsg{width: width, content: glamourRender(markdown, style, width)}
	}
}

// tick schedules the next board clock tick.
func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// scanCatalog rescans src in the background. The result is handed to the
// board, which applies it on its next tick.
func scanCatalog(src noticeSource) tea.Cmd {
	return func() tea.Msg {
		notices, err := src.scan()
		return catalogScannedMsg{notices: notices, err: err}
	}
}

func copyPath(path string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(path); err != nil {
			return errMsg{fmt.Errorf("clipboard: %w", err)}
		}
		return nil
	}
}

// runSettings hands the terminal to `digiboard init` and reloads the config
// when it returns.
func runSettings(configFile string) tea.Cmd {
	exe, err := os.Executable()
	if err != nil {
		return func() tea.Msg { return errMsg{fmt.Errorf("could not find executable: %w", err)} }
	}
	c := exec.Command(exe, "init", "--config", configFile)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		if err != nil {
			return errMsg{fmt.Errorf("setup failed: %w", err)}
		}
		return configUpdatedMsg{}
	})
}

// snapshotPath names a board PNG in dir by timestamp.
func snapshotPath(dir string, now time.Time) string {
	return filepath.Join(dir, "digiboard-"+now.Format("20060102-150405")+".png")
}

func saveSnapshotCmd(f boardFrame, out string) tea.Cmd {
	return func() tea.Msg {
		if err := saveSnapshot(f, out); err != nil {
			return errMsg{fmt.Errorf("snapshot: %w", err)}
		}
		return snapshotSavedMsg{path: out}
	}
}

// ─── Watcher ─────────────────────────────────────────────────────────────────

// watchTree adds dir and, when recursive, its subfolders to the watcher.
func watchTree(watcher *fsnotify.Watcher, dir string, recursive bool) error {
	if err := watcher.Add(dir); err != nil {
		return err
	}
	if !recursive {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() && !skipDirs[e.Name()] && e.Name()[0] != '.' {
			_ = watchTree(watcher, filepath.Join(dir, e.Name()), true)
		}
	}
	return nil
}

// watchFolders points the watcher at the folders a scan reads: the notice
// folder tree and every folder matching the extra glob. Everything watched
// before is dropped first.
func watchFolders(watcher *fsnotify.Watcher, opts scanOptions) error {
	for _, p := range watcher.WatchList() {
		_ = watcher.Remove(p)
	}
	for _, dir := range resolveExtraDirs(opts.extraGlob) {
		_ = watcher.Add(dir)
	}
	return watchTree(watcher, opts.dir, opts.recursive)
}

// relevantEvent reports whether ev can change the catalog: a notice was
// created, written, removed or renamed, or a folder appeared.
func relevantEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if isNoticeFile(filepath.Base(ev.Name)) {
		return true
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// watchDir watches the notice folders for .pdf changes.
// Sends a fileChangedMsg each time a relevant event is detected,
// with a small debounce to coalesce rapid writes.
func watchDir(watcher *fsnotify.Watcher) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !relevantEvent(ev) {
					continue
				}
				changed := map[string]bool{filepath.Base(ev.Name): true}
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = watchTree(watcher, ev.Name, true)
					}
				}
				time.Sleep(100 * time.Millisecond)
			drain:
				for {
					select {
					case extra, ok := <-watcher.Events:
						if !ok {
							break drain
						}
						if relevantEvent(extra) {
							changed[filepath.Base(extra.Name)] = true
						}
					default:
						break drain
					}
				}
				files := make([]string, 0, len(changed))
				for f := range changed {
					files = append(files, f)
				}
				return fileChangedMsg{files: files}
			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}
