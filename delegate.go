package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── Picker Delegate ─────────────────────────────────────────────────────────

var (
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	otherStyle   = lipgloss.NewStyle().Foreground(colorDim)
	dateStyle    = lipgloss.NewStyle().Foreground(colorDim)
	selectedBar  = lipgloss.NewStyle().Foreground(colorAccent).SetString("│ ")
	normalBar    = lipgloss.NewStyle().SetString("  ")
)

// noticeDelegate renders one line per notice in the jump-to picker.
type noticeDelegate struct {
	current *string // path of the notice on screen, shared with the model
}

func (d noticeDelegate) Height() int                             { return 1 }
func (d noticeDelegate) Spacing() int                            { return 0 }
func (d noticeDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d noticeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	n, ok := item.(notice)
	if !ok {
		return
	}

	bar := normalBar
	if index == m.Index() {
		bar = selectedBar
	}

	maxW := m.Width() - 3 // -2 for bar prefix, -1 for right padding
	if maxW < 10 {
		maxW = 10
	}

	badge := otherStyle.Render("·")
	if d.current != nil && *d.current == n.path {
		badge = currentStyle.Render("●")
	}
	badgeW := lipgloss.Width(badge)

	// Show MM-DD for current year, full YYYY-MM-DD otherwise.
	currentYear := strconv.Itoa(time.Now().Year())
	date := n.modified.Format("2006-01-02")
	if strings.HasPrefix(date, currentYear+"-") {
		date = date[len(currentYear)+1:]
	}
	dateW := lipgloss.Width(date) + 1

	avail := maxW - badgeW - dateW
	title := " " + truncateForWidth(n.displayName(), avail-1)
	pad := ""
	if w := lipgloss.Width(title); avail > 0 && w < avail {
		pad = strings.Repeat(" ", avail-w)
	}

	fmt.Fprintf(w, "%s%s%s%s %s ", bar, badge, title, pad, dateStyle.Render(date))
}

// noticesToItems adapts a notice slice for list.SetItems.
func noticesToItems(notices []notice) []list.Item {
	items := make([]list.Item, len(notices))
	for i, n := range notices {
		items[i] = n
	}
	return items
}
