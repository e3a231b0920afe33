// Package desktop is the window manager. A Desktop owns the window records,
// the focus counter and any active drag or resize, and is the only place new
// windows are created.
//
// A Desktop is not safe for concurrent use. The gateway runs every call on the
// session's scheduler.Loop.
package desktop

import (
	"fmt"
	"sort"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/metrics"
	"github.com/antibyte/webdesk/pkg/notify"
	"github.com/google/uuid"
)

// Config holds the window manager's geometry rules.
type Config struct {
	Viewport        Size
	MinSize         Size
	EdgeMargin      int
	TitleBarHeight  int
	ResizeHandle    int
	CascadeOffset   int
	MaxWindows      int
	TerminalSize    Size
	ContentSize     Size
	InitialPosition Point
}

// ConfigFromSettings reads the [Desktop] section.
func ConfigFromSettings() Config {
	return Config{
		Viewport: Size{
			Width:  configuration.GetInt("Desktop", "viewport_width", 1280),
			Height: configuration.GetInt("Desktop", "viewport_height", 800),
		},
		MinSize: Size{
			Width:  configuration.GetInt("Desktop", "min_window_width", 300),
			Height: configuration.GetInt("Desktop", "min_window_height", 200),
		},
		EdgeMargin:      configuration.GetInt("Desktop", "edge_grab_margin", 100),
		TitleBarHeight:  configuration.GetInt("Desktop", "title_bar_height", 36),
		ResizeHandle:    configuration.GetInt("Desktop", "resize_handle_size", 8),
		CascadeOffset:   configuration.GetInt("Desktop", "cascade_offset", 32),
		MaxWindows:      configuration.GetInt("Desktop", "max_windows", 24),
		TerminalSize:    Size{Width: 640, Height: 400},
		ContentSize:     Size{Width: 960, Height: 640},
		InitialPosition: Point{X: 48, Y: 48},
	}
}

// Desktop is one visitor's window manager.
type Desktop struct {
	id        string
	cfg       Config
	viewport  Size
	windows   map[string]*Window
	zCounter  int
	spawned   int
	active    *interaction
	factories map[AppKind]Factory
	notes     *notify.Queue
	closed    bool
}

// New creates an empty desktop publishing notifications to notes.
func New(cfg Config, notes *notify.Queue) *Desktop {
	if notes == nil {
		notes = notify.NewQueue(0)
	}
	return &Desktop{
		id:        uuid.NewString(),
		cfg:       cfg,
		viewport:  cfg.Viewport,
		windows:   make(map[string]*Window),
		factories: make(map[AppKind]Factory),
		notes:     notes,
	}
}

func (d *Desktop) ID() string { return d.id }

// Register installs the content factory for kind.
func (d *Desktop) Register(kind AppKind, f Factory) {
	d.factories[kind] = f
}

// Notifications returns the desktop's queue.
func (d *Desktop) Notifications() *notify.Queue { return d.notes }

// Notify implements Host.
func (d *Desktop) Notify(title, message string) {
	d.notes.Info(title, message)
}

// OpenApp creates a window for kind and focuses it. Unknown kinds get a
// placeholder. Params that do not match kind are replaced by the kind's
// default variant. It returns "" only when the window limit is reached.
func (d *Desktop) OpenApp(kind string, params LaunchParams) string {
	if d.closed {
		return ""
	}
	if d.cfg.MaxWindows > 0 && len(d.windows) >= d.cfg.MaxWindows {
		logger.DesktopWarn("Desktop %s: window limit %d reached, refusing %s", d.id, d.cfg.MaxWindows, kind)
		d.notes.Push(notify.LevelWarning, "Too many windows", "Close a window before opening another one.")
		return ""
	}

	appKind := AppKind(kind)
	if params == nil || params.Kind() != appKind {
		params = DefaultLaunch(appKind, 0)
	}

	var content Content
	if factory, ok := d.factories[appKind]; ok && appKind.Known() {
		content = factory(d, params)
	}
	if content == nil {
		logger.DesktopWarn("Desktop %s: no content for app kind %q, using placeholder", d.id, kind)
		content = NewPlaceholder(kind)
	}

	w := &Window{
		ID:       uuid.NewString(),
		Kind:     appKind,
		Title:    content.Title(),
		Geometry: d.defaultGeometry(appKind),
		Launch:   params,
		Content:  content,
	}
	d.windows[w.ID] = w
	d.spawned++
	content.Bind(&windowControls{desktop: d, id: w.ID})
	d.Focus(w.ID)

	metrics.WindowOpened(string(appKind))
	logger.Debug(logger.AreaWindow, "Desktop %s: opened %s window %s at %+v", d.id, kind, w.ID, w.Geometry)
	return w.ID
}

// defaultGeometry sizes terminal-like apps smaller than content apps and
// cascades each new window, keeping it inside the viewport.
func (d *Desktop) defaultGeometry(kind AppKind) Geometry {
	size := d.cfg.ContentSize
	if kind.TerminalLike() {
		size = d.cfg.TerminalSize
	}
	size.Width = clamp(size.Width, d.cfg.MinSize.Width, d.viewport.Width)
	size.Height = clamp(size.Height, d.cfg.MinSize.Height, d.viewport.Height)

	step := d.spawned % 8
	x := d.cfg.InitialPosition.X + step*d.cfg.CascadeOffset
	y := d.cfg.InitialPosition.Y + step*d.cfg.CascadeOffset
	return Geometry{
		Point: Point{
			X: clamp(x, 0, d.viewport.Width-size.Width),
			Y: clamp(y, 0, d.viewport.Height-size.Height),
		},
		Size: size,
	}
}

// Window returns the record for id.
func (d *Desktop) Window(id string) (*Window, bool) {
	w, ok := d.windows[id]
	return w, ok
}

// Windows returns all windows ordered back to front.
func (d *Desktop) Windows() []*Window {
	out := make([]*Window, 0, len(d.windows))
	for _, w := range d.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// Focused returns the id of the top-most visible window, or "".
func (d *Desktop) Focused() string {
	var top *Window
	for _, w := range d.windows {
		if w.Minimized {
			continue
		}
		if top == nil || w.Z > top.Z {
			top = w
		}
	}
	if top == nil {
		return ""
	}
	return top.ID
}

// Focus brings a window to the front.
func (d *Desktop) Focus(id string) bool {
	w, ok := d.windows[id]
	if !ok {
		return false
	}
	d.zCounter++
	w.Z = d.zCounter
	return true
}

// SetMinimized hides or shows a window. The content stays mounted either way.
func (d *Desktop) SetMinimized(id string, minimized bool) bool {
	w, ok := d.windows[id]
	if !ok {
		return false
	}
	w.Minimized = minimized
	if d.active != nil && d.active.windowID == id {
		d.active = nil
	}
	if !minimized {
		d.Focus(id)
	}
	return true
}

// ToggleMaximize switches between the full viewport and the geometry held
// when maximize was triggered.
func (d *Desktop) ToggleMaximize(id string) bool {
	w, ok := d.windows[id]
	if !ok {
		return false
	}
	if w.Maximized {
		if w.Previous != nil {
			w.Geometry = *w.Previous
		}
		w.Previous = nil
		w.Maximized = false
	} else {
		prev := w.Geometry
		w.Previous = &prev
		w.Geometry = Geometry{Size: d.viewport}
		w.Maximized = true
	}
	if d.active != nil && d.active.windowID == id {
		d.active = nil
	}
	d.Focus(id)
	return true
}

// Close removes the window record and releases its content.
func (d *Desktop) Close(id string) bool {
	w, ok := d.windows[id]
	if !ok {
		return false
	}
	delete(d.windows, id)
	if d.active != nil && d.active.windowID == id {
		d.active = nil
	}
	w.Content.Close()
	metrics.WindowClosed()
	logger.Debug(logger.AreaWindow, "Desktop %s: closed window %s", d.id, id)
	return true
}

// WindowAt returns the top-most visible window containing the point.
func (d *Desktop) WindowAt(x, y int) (string, bool) {
	windows := d.Windows()
	for i := len(windows) - 1; i >= 0; i-- {
		w := windows[i]
		if !w.Minimized && w.Geometry.contains(x, y) {
			return w.ID, true
		}
	}
	return "", false
}

// PointerDown focuses the window and starts a drag or resize depending on
// where the pointer landed. An empty id hit-tests the whole desktop.
func (d *Desktop) PointerDown(id string, x, y int) Hit {
	if id == "" {
		var ok bool
		if id, ok = d.WindowAt(x, y); !ok {
			return Hit{Kind: HitNone}
		}
	}
	w, ok := d.windows[id]
	if !ok || w.Minimized {
		return Hit{Kind: HitNone}
	}
	hit := w.hitTest(x, y, d.cfg.ResizeHandle, d.cfg.TitleBarHeight)
	if hit.Kind == HitNone {
		return hit
	}
	d.Focus(id)

	switch hit.Kind {
	case HitTitleBar:
		d.active = &interaction{windowID: id, mode: modeDrag, startX: x, startY: y, start: w.Geometry}
	case HitResize:
		d.active = &interaction{windowID: id, mode: modeResize, dir: hit.Dir, startX: x, startY: y, start: w.Geometry}
	default:
		d.active = nil
	}
	return hit
}

// PointerMove updates the active drag or resize. It reports whether a window
// changed.
func (d *Desktop) PointerMove(x, y int) bool {
	if d.active == nil {
		return false
	}
	w, ok := d.windows[d.active.windowID]
	if !ok || w.Maximized {
		d.active = nil
		return false
	}
	dx, dy := x-d.active.startX, y-d.active.startY
	before := w.Geometry
	switch d.active.mode {
	case modeDrag:
		w.Geometry = dragTo(d.active.start, dx, dy, d.viewport, d.cfg.EdgeMargin)
	case modeResize:
		w.Geometry = resizeTo(d.active.start, d.active.dir, dx, dy, d.cfg.MinSize)
	}
	return w.Geometry != before
}

// PointerUp ends any drag or resize.
func (d *Desktop) PointerUp() {
	d.active = nil
}

// Interacting reports whether a drag or resize is in progress.
func (d *Desktop) Interacting() bool { return d.active != nil }

// SetViewport records the client's viewport. Maximized windows follow it,
// other windows keep their origin inside the drag bounds.
func (d *Desktop) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.viewport = Size{Width: width, Height: height}
	for _, w := range d.windows {
		if w.Maximized {
			w.Geometry = Geometry{Size: d.viewport}
			continue
		}
		w.Geometry = dragTo(w.Geometry, 0, 0, d.viewport, d.cfg.EdgeMargin)
	}
}

func (d *Desktop) Viewport() Size { return d.viewport }

// HandleInput forwards an app interaction to the window's content.
func (d *Desktop) HandleInput(id string, in Input) error {
	w, ok := d.windows[id]
	if !ok {
		return fmt.Errorf("window %s not found", id)
	}
	err := w.Content.HandleInput(in)
	if current, ok := d.windows[id]; ok {
		current.Title = current.Content.Title()
	}
	return err
}

// Shutdown closes every window, cancelling their timers. The desktop accepts
// no new windows afterwards.
func (d *Desktop) Shutdown() {
	if d.closed {
		return
	}
	for _, w := range d.Windows() {
		d.Close(w.ID)
	}
	d.closed = true
	logger.DesktopInfo("Desktop %s shut down", d.id)
}

// DockItem is a launcher entry.
type DockItem struct {
	Kind  AppKind `json:"kind"`
	Label string  `json:"label"`
}

var dock = []DockItem{
	{Kind: AppTerminal, Label: "Terminal"},
	{Kind: AppFirefox, Label: "Firefox"},
	{Kind: AppThunderbird, Label: "Mail"},
	{Kind: AppFiles, Label: "Files"},
	{Kind: AppHelp, Label: "Help"},
	{Kind: AppAbout, Label: "About"},
}

// Dock returns the static launcher entries.
func (d *Desktop) Dock() []DockItem {
	return append([]DockItem(nil), dock...)
}

// WindowSnapshot is one window as sent to the renderer.
type WindowSnapshot struct {
	ID        string  `json:"id"`
	Kind      AppKind `json:"kind"`
	Title     string  `json:"title"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Z         int     `json:"z"`
	Minimized bool    `json:"minimized"`
	Maximized bool    `json:"maximized"`
	Focused   bool    `json:"focused"`
	Content   any     `json:"content"`
}

// Snapshot is the full renderable desktop state.
type Snapshot struct {
	ID            string                `json:"id"`
	Viewport      Size                  `json:"viewport"`
	Windows       []WindowSnapshot      `json:"windows"`
	Dock          []DockItem            `json:"dock"`
	Notifications []notify.Notification `json:"notifications"`
}

// Snapshot renders every window back to front, minimized ones included.
func (d *Desktop) Snapshot() Snapshot {
	focused := d.Focused()
	windows := d.Windows()
	out := Snapshot{
		ID:            d.id,
		Viewport:      d.viewport,
		Windows:       make([]WindowSnapshot, 0, len(windows)),
		Dock:          d.Dock(),
		Notifications: d.notes.Pending(),
	}
	for _, w := range windows {
		out.Windows = append(out.Windows, WindowSnapshot{
			ID:        w.ID,
			Kind:      w.Kind,
			Title:     w.Title,
			X:         w.Geometry.X,
			Y:         w.Geometry.Y,
			Width:     w.Geometry.Width,
			Height:    w.Geometry.Height,
			Z:         w.Z,
			Minimized: w.Minimized,
			Maximized: w.Maximized,
			Focused:   w.ID == focused,
			Content:   w.Content.Snapshot(),
		})
	}
	return out
}

// windowControls routes content requests back to the desktop.
type windowControls struct {
	desktop *Desktop
	id      string
}

func (c *windowControls) Close()          { c.desktop.Close(c.id) }
func (c *windowControls) Minimize()       { c.desktop.SetMinimized(c.id, true) }
func (c *windowControls) ToggleMaximize() { c.desktop.ToggleMaximize(c.id) }

func (c *windowControls) IsMaximized() bool {
	w, ok := c.desktop.windows[c.id]
	return ok && w.Maximized
}
