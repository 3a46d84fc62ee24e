package tui

import (
	"fmt"
	"image"
	"strings"

	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"geolayer/internal/geom"
)

// layout returns the map area in cells and its top-left cell on screen.
func (m *Model) layout() (w, h, originX, originY int) {
	contentHeight := max(4, m.height-headerHeight-footerHeight)
	contentWidth := max(10, m.width)
	w = contentWidth
	if m.showSidebar {
		w -= sidebarWidth + 1
		originX = sidebarWidth + 1
	}
	return max(10, w), contentHeight, originX, headerHeight
}

// resize keeps the viewport in step with the map area: two braille dots
// across and four down per cell, one map pixel per dot.
func (m *Model) resize() {
	w, h, _, _ := m.layout()
	first := m.vmap.Size().X == 0
	m.vmap.SetSize(w*2, h*4)
	if first {
		m.fitView()
	}
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, h-2)
	}
}

// offMap is a container point far outside the world, where no layer has
// drawn content.
var offMap = image.Pt(-1<<24, -1<<24)

// cellPoint is the container point at the center of map cell (cx, cy).
func cellPoint(cx, cy int) image.Point {
	return image.Pt(cx*2+1, cy*4+2)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loopMsg:
		msg.run()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case tea.KeyMsg:
		if m.showSidebar && m.l.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		if m.pasteMode {
			return m.updatePaste(msg)
		}
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}
	case tea.MouseMsg:
		m.handleMouse(msg)
	}
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updatePaste(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.pasteMode = false
		m.ta.Blur()
		return m, nil
	case "enter":
		w := strings.TrimSpace(m.ta.Value())
		if w == "" {
			m.status = "paste: empty"
			return m, nil
		}
		if m.mem == nil {
			m.status = "paste needs the memory provider"
			return m, nil
		}
		d, err := geom.ParseWKTData(w)
		if err != nil {
			m.status = "wkt error: " + err.Error()
			return m, nil
		}
		m.selPath = ""
		m.setData(d.Features, d.BBox)
		pts, ls, polys := d.Counts()
		m.status = fmt.Sprintf("rendered WKT  counts: pts=%d ls=%d poly=%d", pts, ls, polys)
		m.pasteMode = false
		m.ta.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "1", "2", "3":
		k := geomKind(msg.String()[0] - '1')
		shown := m.vis.toggle(k)
		m.layer.Redraw()
		m.status = fmt.Sprintf("%s: %v", k, shown)
	case "l":
		all := m.vis.allVisible()
		m.vis.setAll(!all)
		m.layer.Redraw()
		m.status = fmt.Sprintf("layers: %v", !all)
	case "+", "=":
		m.vmap.ZoomIn()
		m.status = fmt.Sprintf("zoom: %d", m.vmap.Zoom())
	case "-", "_":
		m.vmap.ZoomOut()
		m.status = fmt.Sprintf("zoom: %d", m.vmap.Zoom())
	case "0":
		m.fitView()
		m.status = "fit to data"
	case "up":
		m.vmap.PanBy(0, -panStep)
	case "down":
		m.vmap.PanBy(0, panStep)
	case "left":
		m.vmap.PanBy(-panStep, 0)
	case "right":
		m.vmap.PanBy(panStep, 0)
	case "tab":
		m.showSidebar = !m.showSidebar
		if m.showSidebar {
			m.refreshDir()
		}
		m.resize()
	case "p":
		m.pasteMode = true
		m.ta.SetValue("")
		m.status = "paste mode"
		m.ta.Focus()
	case "h":
		m.helpVisible = !m.helpVisible
	case "a":
		m.showAttrs = !m.showAttrs
		if m.showAttrs {
			m.refreshAttrs()
		}
	case "i":
		if !m.hovering {
			m.status = "hover a location to inspect it"
			break
		}
		m.layer.OpenPopup(m.ctx, m.hoverLL)
	case "esc":
		m.popup = nil
	case "enter":
		if m.showSidebar {
			if it, ok := m.l.SelectedItem().(fileItem); ok {
				m.loadPath(it.path)
			}
		}
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	w, h, ox, oy := m.layout()
	cx, cy := msg.X-ox, msg.Y-oy
	if cx < 0 || cy < 0 || cx >= w || cy >= h {
		if m.hovering {
			m.hovering = false
			m.vmap.MouseMove(offMap)
		}
		return
	}
	pt := cellPoint(cx, cy)
	m.hovering = true
	m.hoverCellX, m.hoverCellY = cx, cy
	m.hoverLL = m.vmap.ContainerPointToLatLng(pt)

	switch {
	case msg.Action == tea.MouseActionMotion:
		m.vmap.MouseMove(pt)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.vmap.Click(pt)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelUp:
		m.vmap.ZoomAround(pt, m.vmap.Zoom()+1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelDown:
		m.vmap.ZoomAround(pt, m.vmap.Zoom()-1)
	}
}
