package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"geolayer/internal/layer"
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	mapW, mapH, _, _ := m.layout()
	contentWidth := max(10, m.width)

	header := titleStyle.Render(" geolayer ─ terminal tile layer viewer ")
	header = lipgloss.NewStyle().Width(contentWidth).Render(header)

	var mapView string
	switch {
	case m.showAttrs:
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		maxW := min(mapW, max(32, colW))
		m.tbl.SetWidth(maxW - 4)
		m.tbl.SetHeight(min(mapH-2, 20))
		mapView = lipgloss.Place(mapW, mapH, lipgloss.Center, lipgloss.Center, boxStyle.Width(maxW).Render(m.tbl.View()))
	case m.pasteMode:
		m.ta.SetWidth(mapW)
		m.ta.SetHeight(min(mapH, 12))
		mapView = lipgloss.NewStyle().Width(mapW).Height(mapH).Render(m.ta.View())
	default:
		mapView = lipgloss.NewStyle().Width(mapW).Height(mapH).Render(m.renderMap(mapW, mapH))
	}
	if m.popup != nil && !m.showAttrs && !m.pasteMode {
		box := boxStyle.Render(m.popup.text)
		mapView = overlay(mapView, box, mapW, mapH)
	}

	body := mapView
	if m.showSidebar {
		sidebar := lipgloss.NewStyle().Width(sidebarWidth).Render(m.l.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	}

	status := dimStyle.Render(" " + m.status + " ")
	left := lipgloss.JoinHorizontal(lipgloss.Bottom, status, m.renderHelp())
	right := m.renderPointer()
	spacerW := max(0, contentWidth-lipgloss.Width(left)-lipgloss.Width(right))
	footer := lipgloss.NewStyle().Width(contentWidth).Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, left, strings.Repeat(" ", spacerW), right))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

// renderMap samples the layer's drawn tiles into braille cells. The cell
// under the pointer is highlighted while it is over drawn content.
func (m *Model) renderMap(w, h int) string {
	b := sampleLayer(m.layer, m.vmap, w, h)
	hot := m.hovering && m.vmap.Cursor() == layer.CursorPointer
	var sb strings.Builder
	for y := 0; y < h; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		if !hot || y != m.hoverCellY {
			sb.WriteString(mapStyle.Render(string(rowRunes(b, y, 0, w))))
			continue
		}
		x := min(m.hoverCellX, w-1)
		sb.WriteString(mapStyle.Render(string(rowRunes(b, y, 0, x))))
		sb.WriteString(hoverStyle.Render(string(rowRunes(b, y, x, x+1))))
		sb.WriteString(mapStyle.Render(string(rowRunes(b, y, x+1, w))))
	}
	return sb.String()
}

func rowRunes(b *brailleBuf, y, from, to int) []rune {
	out := make([]rune, 0, max(0, to-from))
	for x := from; x < to; x++ {
		out = append(out, b.cell(x, y))
	}
	return out
}

// overlay places box over the left middle of a w by h block.
func overlay(base, box string, w, h int) string {
	baseLines := strings.Split(base, "\n")
	boxLines := strings.Split(box, "\n")
	top := max(0, (h-len(boxLines))/2)
	for i, bl := range boxLines {
		y := top + i
		if y >= len(baseLines) {
			break
		}
		rest := max(0, w-lipgloss.Width(bl))
		baseLines[y] = bl + strings.Repeat(" ", rest)
	}
	return strings.Join(baseLines, "\n")
}

func (m *Model) renderPointer() string {
	if !m.hovering {
		return ""
	}
	s := fmt.Sprintf("  z=%d lon=%.5f lat=%.5f", m.vmap.Zoom(), m.hoverLL[0], m.hoverLL[1])
	if hovered, _, ok := m.tracker.Hovered(); ok {
		s += fmt.Sprintf("  [%d under pointer]", len(hovered))
	}
	return dimStyle.Render(s + "  ")
}

func (m *Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"↑↓←→ pan",
		"+/- zoom",
		"0 fit",
		"Tab sidebar",
		"Enter open",
		"p paste",
		"a attrs",
		"i inspect",
		"1/2/3 l layers",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
