package apps

import (
	"fmt"

	"github.com/antibyte/webdesk/pkg/browser"
	"github.com/antibyte/webdesk/pkg/desktop"
)

// Firefox wraps the simulated browser.
type Firefox struct {
	chrome
	browser *browser.Browser
	pid     int
	title   string
}

func NewFirefox(env Env, launch desktop.BrowserLaunch) *Firefox {
	return &Firefox{
		browser: browser.New(env.Bundle.Browser, launch.URL),
		pid:     launch.PID,
		title:   launch.Title,
	}
}

func (f *Firefox) Title() string {
	title := f.browser.Current().Title
	if title == "" {
		title = f.title
	}
	if f.pid != 0 {
		return fmt.Sprintf("%s - Firefox (PID %d)", title, f.pid)
	}
	return title + " - Firefox"
}

func (f *Firefox) Browser() *browser.Browser { return f.browser }

type FirefoxView struct {
	Kind string `json:"kind"`
	PID  int    `json:"pid,omitempty"`
	browser.Snapshot
}

func (f *Firefox) Snapshot() any {
	return FirefoxView{Kind: "firefox", PID: f.pid, Snapshot: f.browser.Snapshot()}
}

// HandleInput maps toolbar actions onto the browser. Arg carries the URL or
// tab id where one is needed.
func (f *Firefox) HandleInput(in desktop.Input) error {
	if f.handleChrome(in) {
		return nil
	}
	switch in.Action {
	case "navigate":
		f.browser.Navigate(in.Arg)
	case "back":
		f.browser.Back()
	case "forward":
		f.browser.Forward()
	case "reload":
		f.browser.Reload()
	case "newtab":
		f.browser.NewTab(in.Arg)
	case "closetab":
		f.browser.CloseTab(in.Arg)
	case "selecttab":
		f.browser.SelectTab(in.Arg)
	default:
		return desktop.ErrUnsupportedInput
	}
	return nil
}

func (f *Firefox) Close() {}
