package main

import (
	"path/filepath"
	"time"
)

// demoNotices is a fixed board for trying digiboard without a folder of
// PDFs. Names read like a real office notice board.
func demoNotices(now time.Time) []notice {
	day := 24 * time.Hour
	mk := func(name string, age time.Duration, size int64, pages int) notice {
		t := now.Add(-age)
		return notice{
			path:     filepath.Join("demo", name),
			dir:      "demo",
			name:     name,
			modified: t,
			created:  t.Add(-2 * time.Hour),
			size:     size,
			pages:    pages,
		}
	}
	return []notice{
		mk("Fire drill Thursday 10am.pdf", 0, 48_213, 1),
		mk("Canteen menu week 42.pdf", 1*day, 125_904, 2),
		mk("Parking level B closed for resurfacing.pdf", 2*day, 61_377, 1),
		mk("Quarterly all-hands agenda.pdf", 3*day, 233_010, 3),
		mk("New visitor badge policy.pdf", 5*day, 88_540, 2),
		mk("Bike to work week.pdf", 8*day, 1_402_331, 1),
		mk("First aid officers by floor.pdf", 13*day, 39_118, 1),
		mk("Lost property.pdf", 21*day, 12_044, 1),
	}
}

// ─── demoSource ──────────────────────────────────────────────────────────────

// demoSource implements noticeSource with in-memory notices (no disk I/O).
type demoSource struct {
	notices []notice
	order   string
}

func newDemoSource(now time.Time, order string) demoSource {
	return demoSource{notices: demoNotices(now), order: order}
}

func (s demoSource) scan() ([]notice, error) {
	out := make([]notice, len(s.notices))
	copy(out, s.notices)
	sortNotices(out, s.order)
	return out, nil
}

func (s demoSource) root() string { return "demo" }

// enterDemoMode swaps the catalog onto the demo board.
func (m *model) enterDemoMode() {
	m.demo = true
	m.board.catalog.setSource(newDemoSource(m.now(), m.board.Config().SortOrder))
	_ = m.board.Refresh()
	// Init renders the thumbnails; only the picker needs the events here.
	_ = m.drainEvents()
}
