// Package browser simulates the mock web browser: tabs, per-tab history and
// URL resolution to either an internal page or an embedded frame.
package browser

import (
	"strings"

	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/google/uuid"
)

// ViewKind tells the renderer how to show a URL.
type ViewKind string

const (
	ViewInternal ViewKind = "internal"
	ViewFrame    ViewKind = "frame"
	ViewNotFound ViewKind = "notfound"
)

// View is a resolved URL.
type View struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Kind  ViewKind `json:"kind"`
	Body  string   `json:"body,omitempty"`
}

// Tab keeps its own history; Index points at the current entry.
type Tab struct {
	ID      string   `json:"id"`
	History []string `json:"history"`
	Index   int      `json:"index"`
	Reloads int      `json:"reloads"`
}

func (t *Tab) current() string { return t.History[t.Index] }

// Browser holds the tabs of one browser window.
type Browser struct {
	pages     map[string]content.Page
	home      string
	bookmarks []content.Bookmark
	tabs      []*Tab
	active    int
}

// New creates a browser with one tab showing url, or the home page when url
// is empty.
func New(cfg content.Browser, url string) *Browser {
	b := &Browser{
		pages:     make(map[string]content.Page, len(cfg.Pages)),
		home:      cfg.Home,
		bookmarks: cfg.Bookmarks,
	}
	if b.home == "" {
		b.home = "about:home"
	}
	for _, p := range cfg.Pages {
		b.pages[p.URL] = p
	}
	b.NewTab(url)
	return b
}

// Normalize turns user input into a URL. Bare hosts get https://.
func (b *Browser) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return b.home
	case strings.HasPrefix(raw, "about:"), strings.Contains(raw, "://"):
		return raw
	default:
		return "https://" + raw
	}
}

// Resolve maps a URL to its view. about: and portfolio:// URLs are internal;
// unknown internal URLs resolve to a not-found view. Everything else is framed.
func (b *Browser) Resolve(raw string) View {
	url := b.Normalize(raw)
	if page, ok := b.pages[url]; ok {
		return View{URL: url, Title: page.Title, Kind: ViewInternal, Body: page.Body}
	}
	if strings.HasPrefix(url, "about:") || strings.HasPrefix(url, "portfolio://") {
		return View{URL: url, Title: "Page not found", Kind: ViewNotFound, Body: "No page at " + url}
	}
	return View{URL: url, Title: hostOf(url), Kind: ViewFrame}
}

func hostOf(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if i := strings.IndexAny(url, "/?#"); i >= 0 {
		url = url[:i]
	}
	return url
}

func (b *Browser) tab() *Tab { return b.tabs[b.active] }

// Navigate loads url in the active tab, dropping forward history.
func (b *Browser) Navigate(raw string) View {
	url := b.Normalize(raw)
	t := b.tab()
	t.History = append(t.History[:t.Index+1], url)
	t.Index = len(t.History) - 1
	logger.Debug(logger.AreaBrowser, "Tab %s navigated to %s", t.ID, url)
	return b.Resolve(url)
}

// Back moves one entry back. It reports false at the start of history.
func (b *Browser) Back() bool {
	t := b.tab()
	if t.Index == 0 {
		return false
	}
	t.Index--
	return true
}

// Forward moves one entry forward. It reports false at the end of history.
func (b *Browser) Forward() bool {
	t := b.tab()
	if t.Index >= len(t.History)-1 {
		return false
	}
	t.Index++
	return true
}

func (b *Browser) CanGoBack() bool    { return b.tab().Index > 0 }
func (b *Browser) CanGoForward() bool { return b.tab().Index < len(b.tab().History)-1 }

// Reload re-resolves the current entry without touching history.
func (b *Browser) Reload() View {
	t := b.tab()
	t.Reloads++
	return b.Resolve(t.current())
}

// NewTab opens a tab on url (home when empty) and selects it.
func (b *Browser) NewTab(raw string) string {
	t := &Tab{ID: uuid.NewString(), History: []string{b.Normalize(raw)}}
	b.tabs = append(b.tabs, t)
	b.active = len(b.tabs) - 1
	return t.ID
}

// CloseTab removes a tab. The last tab can never be closed.
func (b *Browser) CloseTab(id string) bool {
	if len(b.tabs) <= 1 {
		return false
	}
	for i, t := range b.tabs {
		if t.ID != id {
			continue
		}
		b.tabs = append(b.tabs[:i], b.tabs[i+1:]...)
		if b.active > i || b.active >= len(b.tabs) {
			b.active--
		}
		return true
	}
	return false
}

// SelectTab activates the tab with id.
func (b *Browser) SelectTab(id string) bool {
	for i, t := range b.tabs {
		if t.ID == id {
			b.active = i
			return true
		}
	}
	return false
}

// Current resolves the active tab's current URL.
func (b *Browser) Current() View { return b.Resolve(b.tab().current()) }

func (b *Browser) ActiveTab() string { return b.tab().ID }

func (b *Browser) TabCount() int { return len(b.tabs) }

// TabView is one entry of the tab strip.
type TabView struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Snapshot is the renderable browser state.
type Snapshot struct {
	Tabs       []TabView          `json:"tabs"`
	View       View               `json:"view"`
	CanBack    bool               `json:"canBack"`
	CanForward bool               `json:"canForward"`
	Bookmarks  []content.Bookmark `json:"bookmarks"`
	Reloads    int                `json:"reloads"`
}

func (b *Browser) Snapshot() Snapshot {
	tabs := make([]TabView, len(b.tabs))
	for i, t := range b.tabs {
		tabs[i] = TabView{ID: t.ID, Title: b.Resolve(t.current()).Title, Active: i == b.active}
	}
	return Snapshot{
		Tabs:       tabs,
		View:       b.Current(),
		CanBack:    b.CanGoBack(),
		CanForward: b.CanGoForward(),
		Bookmarks:  b.bookmarks,
		Reloads:    b.tab().Reloads,
	}
}
