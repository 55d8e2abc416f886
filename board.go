package main

import (
	"time"

	"go.uber.org/zap"
)

// ─── Events ──────────────────────────────────────────────────────────────────

type eventKind int

const (
	eventNoticeChanged eventKind = iota
	eventViewChanged
	eventOverlayShown
	eventOverlayHidden
	eventCatalogUpdated
	eventCatalogError
	eventPlayStateChanged
	eventPageChanged
)

var eventNames = [...]string{
	eventNoticeChanged:    "notice changed",
	eventViewChanged:      "view changed",
	eventOverlayShown:     "overlay shown",
	eventOverlayHidden:    "overlay hidden",
	eventCatalogUpdated:   "catalog updated",
	eventCatalogError:     "catalog error",
	eventPlayStateChanged: "play state changed",
	eventPageChanged:      "page changed",
}

func (k eventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// event is a notification for the display layer.
type event struct {
	kind  eventKind
	index int    // eventNoticeChanged, eventPageChanged
	path  string // eventNoticeChanged, eventPageChanged; "" when the catalog is empty
	err   error  // eventCatalogError
}

// scanResult is a background scan waiting for the next tick.
type scanResult struct {
	notices []notice
	err     error
}

// ─── Board ───────────────────────────────────────────────────────────────────

// board is the application state. It is owned by the tick loop: every
// method must be called from there. Background work hands results over
// through Publish.
type board struct {
	store   *configStore
	catalog *noticeCatalog
	show    *slideshowController
	view    *viewportState
	idle    *idleOverlayMonitor
	log     *zap.Logger
	now     func() time.Time
	cfg     *config // snapshot the components were last configured from

	pending    *scanResult
	events     []event
	idlePaused bool // rotation paused by the idle overlay, not the user
}

func newBoard(store *configStore, catalog *noticeCatalog, log *zap.Logger, now func() time.Time) *board {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	cfg := store.Snapshot()
	show := newSlideshowController(catalog, cfg.CycleInterval, now)
	show.SetShufflePages(cfg.ShufflePages)
	return &board{
		store:   store,
		catalog: catalog,
		show:    show,
		view:    newViewportState(cfg),
		idle:    newIdleOverlayMonitor(cfg.IdleTimeout, now()),
		log:     log,
		now:     now,
		cfg:     cfg,
	}
}

func (b *board) Config() *config { return b.cfg }

// Events returns the events emitted since the last call and clears them.
func (b *board) Events() []event {
	ev := b.events
	b.events = nil
	return ev
}

func (b *board) emit(e event) {
	b.log.Debug("board event", zap.Stringer("kind", e.kind), zap.Int("index", e.index), zap.String("path", e.path))
	b.events = append(b.events, e)
}

// noticeChanged emits the change and resets the viewport for the new
// notice.
func (b *board) noticeChanged() {
	n, _ := b.show.Current()
	b.emit(event{kind: eventNoticeChanged, index: b.show.Index(), path: n.path})
	if b.view.NoticeChanged() {
		b.emit(event{kind: eventViewChanged})
	}
}

// Publish queues a background scan result. It is applied at the start of
// the next Tick; a newer result replaces an older unapplied one.
func (b *board) Publish(notices []notice, err error) {
	b.pending = &scanResult{notices: notices, err: err}
}

// Tick advances the board to now: pending scan, then idle check, then
// rotation.
func (b *board) Tick(now time.Time) {
	if p := b.pending; p != nil {
		b.pending = nil
		b.settle(b.catalog.apply(p.notices, p.err))
	}

	if changed, active := b.idle.Tick(now); changed {
		if active {
			b.emit(event{kind: eventOverlayShown})
			if b.Config().IdlePausesRotate && b.show.Pause() {
				b.idlePaused = true
				b.emit(event{kind: eventPlayStateChanged})
			}
		} else {
			b.emit(event{kind: eventOverlayHidden})
			b.resumeFromIdle()
		}
	}

	prev := b.show.current
	if b.show.Tick(now) {
		if b.show.current != prev {
			b.noticeChanged()
		} else {
			b.emit(event{kind: eventPageChanged, index: b.show.Index(), path: prev})
		}
	}
}

// Refresh rescans synchronously.
func (b *board) Refresh() error {
	err := b.catalog.Refresh()
	b.settle(err)
	return err
}

// settle turns the outcome of a catalog refresh into events.
func (b *board) settle(err error) {
	if err != nil {
		b.emit(event{kind: eventCatalogError, err: err})
		return
	}
	b.emit(event{kind: eventCatalogUpdated})
	if b.show.Reconcile() {
		b.noticeChanged()
	}
}

// ─── Input ───────────────────────────────────────────────────────────────────

// Interact records user input that is not itself a command, such as a
// mouse move.
func (b *board) Interact() {
	now := b.now()
	if b.idle.RecordInteraction(now) {
		b.emit(event{kind: eventOverlayHidden})
	}
	b.resumeFromIdle()
}

// resumeFromIdle restarts rotation that the overlay paused. A pause the
// user asked for is left alone.
func (b *board) resumeFromIdle() {
	if !b.idlePaused {
		return
	}
	b.idlePaused = false
	if b.show.Resume() {
		b.emit(event{kind: eventPlayStateChanged})
	}
}

func (b *board) Next() {
	b.Interact()
	if b.show.Next() {
		b.noticeChanged()
	}
}

func (b *board) Previous() {
	b.Interact()
	if b.show.Previous() {
		b.noticeChanged()
	}
}

func (b *board) JumpTo(i int) error {
	b.Interact()
	changed, err := b.show.JumpTo(i)
	if err != nil {
		return err
	}
	if changed {
		b.noticeChanged()
	}
	return nil
}

func (b *board) TogglePause() playState {
	b.Interact()
	st := b.show.TogglePause()
	b.emit(event{kind: eventPlayStateChanged})
	return st
}

func (b *board) viewOp(changed bool) {
	if changed {
		b.emit(event{kind: eventViewChanged})
	}
}

func (b *board) ZoomIn() {
	b.Interact()
	b.viewOp(b.view.ZoomIn())
}

func (b *board) ZoomOut() {
	b.Interact()
	b.viewOp(b.view.ZoomOut())
}

func (b *board) ZoomBy(factor float64) {
	b.Interact()
	b.viewOp(b.view.ZoomBy(factor))
}

func (b *board) Pan(dx, dy float64) {
	b.Interact()
	b.viewOp(b.view.Pan(dx, dy))
}

func (b *board) PanSteps(sx, sy int) {
	b.Interact()
	b.viewOp(b.view.PanSteps(sx, sy))
}

func (b *board) ResetView() {
	b.Interact()
	b.viewOp(b.view.Reset())
}

func (b *board) CycleFitMode() string {
	b.Interact()
	mode := b.view.CycleFitMode()
	b.emit(event{kind: eventViewChanged})
	return mode
}

func (b *board) ToggleLock() bool {
	b.Interact()
	return b.view.ToggleLock()
}

// ─── Config ──────────────────────────────────────────────────────────────────

// ApplyConfig installs cfg as the current snapshot and pushes the new
// interval, idle threshold and viewport bounds into the components.
// Reports whether the scan options changed and a rescan is due.
func (b *board) ApplyConfig(cfg *config) bool {
	prev := b.cfg
	b.cfg = cfg
	b.store.snap.Store(cfg)
	b.show.SetInterval(cfg.CycleInterval)
	b.idle.SetThreshold(cfg.IdleTimeout)
	b.view.applyConfig(cfg)
	b.show.SetShufflePages(cfg.ShufflePages)
	if !cfg.IdlePausesRotate {
		b.resumeFromIdle()
	}

	if scanOptionsFrom(prev) == scanOptionsFrom(cfg) {
		return false
	}
	if ds, ok := b.catalog.source.(diskSource); ok {
		b.catalog.setSource(diskSource{opts: scanOptionsFrom(cfg), pages: ds.pages})
	}
	b.log.Info("scan options changed", zap.String("folder", cfg.FolderPath))
	return true
}

// ReloadConfig re-reads the config file and applies it. On error the
// current snapshot stays in place.
func (b *board) ReloadConfig() (bool, error) {
	cfg, err := b.store.Reload()
	if err != nil {
		b.log.Warn("config reload failed", zap.String("path", b.store.Path()), zap.Error(err))
		return false, err
	}
	return b.ApplyConfig(cfg), nil
}
