// Package tui is the interactive terminal host: a viewport.Map driven by
// keys and mouse, showing a DataLayer through braille sampling of its
// drawn tiles.
package tui

import (
	"context"
	"os"

	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"geolayer/internal/layer"
	"geolayer/internal/provider"
	"geolayer/internal/render"
	"geolayer/internal/viewport"
)

const (
	sidebarWidth = 28
	headerHeight = 1
	footerHeight = 2
	// panStep is how far arrow keys move the map, in map pixels.
	panStep = 16
)

type Options struct {
	// Provider backs the layer. When nil, an in-memory provider is used
	// and files or pasted WKT are loaded into it.
	Provider provider.Provider
	Styles   []render.Style
	Layer    layer.Options
	// Path is loaded at start when set.
	Path string
	Log  *log.Entry
}

type Model struct {
	width  int
	height int

	showSidebar bool
	helpVisible bool
	status      string

	ctx    context.Context
	cancel context.CancelFunc
	log    *log.Entry

	loop    *teaLoop
	vmap    *viewport.Map
	layer   *layer.DataLayer
	tracker *layer.Tracker
	mem     *provider.Memory
	vis     *visibility
	bounds  orb.Bound
	hasData bool

	// File explorer
	cwd     string
	l       list.Model
	selPath string

	// paste mode
	pasteMode bool
	ta        textarea.Model

	// popup opened by click or inspect
	popup *popupContent

	// hover state, in map cells
	hovering   bool
	hoverCellX int
	hoverCellY int
	hoverLL    orb.Point

	// attributes table of the features in view
	showAttrs bool
	tbl       table.Model
}

func New(opts Options) *Model {
	m := &Model{
		helpVisible: true,
		status:      "geolayer ready",
		loop:        &teaLoop{send: func(tea.Msg) {}},
		vis:         &visibility{},
		log:         opts.Log,
	}
	if m.log == nil {
		m.log = log.WithField("component", "tui")
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.cwd, _ = os.Getwd()

	p := opts.Provider
	if p == nil {
		m.mem = provider.NewMemory()
		p = m.mem
	} else if mem, ok := p.(*provider.Memory); ok {
		m.mem = mem
	}
	styles := opts.Styles
	if len(styles) == 0 {
		styles = []render.Style{render.NewSimpleStyle()}
	}

	m.vmap = viewport.New(viewport.Options{TileSize: opts.Layer.TileSize})
	m.tracker = layer.NewTracker(nil)
	lo := opts.Layer
	lo.Provider = p
	lo.Styles = wrapStyles(styles, m.vis)
	lo.Tracker = m.tracker
	lo.Log = m.log.WithField("layer", "data")
	m.layer = layer.New(m.loop, lo)
	m.layer.BindPopup(layer.PopupFunc(m.openPopup))
	m.layer.On(viewport.EventClick, func(e *viewport.Event) {
		m.layer.OpenPopup(m.ctx, e.LatLng)
	})
	m.vmap.AddLayer(m.layer)

	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.l = list.New(nil, d, 0, 0)
	m.l.Title = "Files"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)

	m.ta = textarea.New()
	m.ta.Placeholder = "Paste WKT here, one geometry per line. Press Enter to render; Esc to cancel."
	m.ta.CharLimit = 0
	m.ta.SetWidth(50)
	m.ta.SetHeight(6)

	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)
	m.refreshDir()
	if opts.Path != "" {
		m.loadPath(opts.Path)
	}
	return m
}

// Attach routes loop callbacks through p. It must be called before p runs.
func (m *Model) Attach(p *tea.Program) {
	m.loop.send = p.Send
}

func (m *Model) Init() tea.Cmd { return nil }

// Close detaches the layer and stops pending loads.
func (m *Model) Close() {
	m.vmap.RemoveLayer(m.layer)
	m.cancel()
}

// Run starts the terminal program and blocks until it quits.
func Run(opts Options) error {
	m := New(opts)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	m.Attach(p)
	_, err := p.Run()
	return err
}

// setData swaps the memory provider's content and refits the view.
func (m *Model) setData(features []*geojson.Feature, bounds orb.Bound) {
	m.mem.Replace(features...)
	m.bounds = bounds
	m.hasData = len(features) > 0
	m.popup = nil
	m.fitView()
	m.layer.Redraw()
	if m.showAttrs {
		m.refreshAttrs()
	}
}

func (m *Model) fitView() {
	if m.hasData && m.vmap.Size().X > 0 {
		m.vmap.FitBounds(m.bounds)
	}
}
