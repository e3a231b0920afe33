package desktop

// Point is a position in desktop pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Geometry is a window's position and size.
type Geometry struct {
	Point
	Size
}

func (g Geometry) contains(x, y int) bool {
	return x >= g.X && y >= g.Y && x < g.X+g.Width && y < g.Y+g.Height
}

// Window is one record on the desktop. Only the Desktop mutates it.
type Window struct {
	ID        string
	Kind      AppKind
	Title     string
	Geometry  Geometry
	Z         int
	Minimized bool
	Maximized bool
	// Previous is captured when the window is maximized.
	Previous *Geometry
	Launch   LaunchParams
	Content  Content
}

// HitKind says what part of a window a pointer landed on.
type HitKind int

const (
	HitNone HitKind = iota
	HitBody
	HitTitleBar
	HitResize
)

// Hit is the result of a hit test. Dir is one of n, s, e, w, ne, nw, se, sw
// for resize hits.
type Hit struct {
	Kind HitKind
	Dir  string
}

// hitTest classifies a point in desktop coordinates. Resize bands win over
// the title bar; maximized windows only report body hits.
func (w *Window) hitTest(x, y, handle, titleBar int) Hit {
	if !w.Geometry.contains(x, y) {
		return Hit{Kind: HitNone}
	}
	if w.Maximized {
		return Hit{Kind: HitBody}
	}
	lx, ly := x-w.Geometry.X, y-w.Geometry.Y

	dir := ""
	switch {
	case ly < handle:
		dir = "n"
	case ly >= w.Geometry.Height-handle:
		dir = "s"
	}
	switch {
	case lx < handle:
		dir += "w"
	case lx >= w.Geometry.Width-handle:
		dir += "e"
	}
	if dir != "" {
		return Hit{Kind: HitResize, Dir: dir}
	}
	if ly < titleBar {
		return Hit{Kind: HitTitleBar}
	}
	return Hit{Kind: HitBody}
}

type interactionMode int

const (
	modeDrag interactionMode = iota + 1
	modeResize
)

// interaction is an active drag or resize.
type interaction struct {
	windowID string
	mode     interactionMode
	dir      string
	startX   int
	startY   int
	start    Geometry
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dragTo moves the origin by the pointer delta, keeping it inside
// [0, viewport - margin] on both axes.
func dragTo(start Geometry, dx, dy int, viewport Size, margin int) Geometry {
	g := start
	g.X = clamp(start.X+dx, 0, viewport.Width-margin)
	g.Y = clamp(start.Y+dy, 0, viewport.Height-margin)
	return g
}

// resizeTo applies the pointer delta for a handle direction. For n and w the
// opposite edge stays fixed. The minimum size holds on every move.
func resizeTo(start Geometry, dir string, dx, dy int, min Size) Geometry {
	g := start
	for _, d := range dir {
		switch d {
		case 'e':
			g.Width = max(min.Width, start.Width+dx)
		case 's':
			g.Height = max(min.Height, start.Height+dy)
		case 'w':
			right := start.X + start.Width
			g.Width = max(min.Width, start.Width-dx)
			g.X = right - g.Width
			if g.X < 0 {
				g.X = 0
				g.Width = max(min.Width, right)
			}
		case 'n':
			bottom := start.Y + start.Height
			g.Height = max(min.Height, start.Height-dy)
			g.Y = bottom - g.Height
			if g.Y < 0 {
				g.Y = 0
				g.Height = max(min.Height, bottom)
			}
		}
	}
	return g
}
