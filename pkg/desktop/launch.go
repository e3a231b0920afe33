package desktop

import (
	"encoding/json"
	"fmt"
)

// AppKind names an application the desktop can host.
type AppKind string

const (
	AppTerminal    AppKind = "Terminal"
	AppInstaller   AppKind = "Installer"
	AppFirefox     AppKind = "Firefox"
	AppThunderbird AppKind = "Thunderbird"
	AppFiles       AppKind = "Files"
	AppHelp        AppKind = "Help"
	AppAbout       AppKind = "About"
)

// KnownApps lists every kind with a real content implementation, in dock order.
var KnownApps = []AppKind{AppTerminal, AppFirefox, AppThunderbird, AppFiles, AppHelp, AppAbout, AppInstaller}

// Known reports whether k is one of the fixed app kinds.
func (k AppKind) Known() bool {
	for _, known := range KnownApps {
		if k == known {
			return true
		}
	}
	return false
}

// TerminalLike reports whether the kind gets the small default window.
func (k AppKind) TerminalLike() bool {
	return k == AppTerminal || k == AppInstaller
}

// LaunchParams is the payload passed at window creation. Each app kind has
// exactly one variant; the unexported method closes the set.
type LaunchParams interface {
	Kind() AppKind
	launchParams()
}

// TerminalLaunch starts a terminal. A non-empty Script makes it a child
// process that prints a banner with PID and runs the script.
type TerminalLaunch struct {
	Script string `json:"script,omitempty"`
	PID    int    `json:"pid,omitempty"`
}

// InstallerLaunch starts the installer window for a spawned setup script.
type InstallerLaunch struct {
	Script string `json:"script"`
	PID    int    `json:"pid"`
}

// BrowserLaunch opens the browser on URL.
type BrowserLaunch struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	PID   int    `json:"pid,omitempty"`
}

type MailLaunch struct{}

// FilesLaunch opens the file browser at Path ("/"-joined, empty for home).
type FilesLaunch struct {
	Path string `json:"path,omitempty"`
}

type HelpLaunch struct {
	Topic string `json:"topic,omitempty"`
}

type AboutLaunch struct{}

// UnknownLaunch carries the requested kind of an app the desktop cannot host.
type UnknownLaunch struct {
	Requested string `json:"requested"`
}

func (TerminalLaunch) Kind() AppKind  { return AppTerminal }
func (InstallerLaunch) Kind() AppKind { return AppInstaller }
func (BrowserLaunch) Kind() AppKind   { return AppFirefox }
func (MailLaunch) Kind() AppKind      { return AppThunderbird }
func (FilesLaunch) Kind() AppKind     { return AppFiles }
func (HelpLaunch) Kind() AppKind      { return AppHelp }
func (AboutLaunch) Kind() AppKind     { return AppAbout }
func (u UnknownLaunch) Kind() AppKind { return AppKind(u.Requested) }

func (TerminalLaunch) launchParams()  {}
func (InstallerLaunch) launchParams() {}
func (BrowserLaunch) launchParams()   {}
func (MailLaunch) launchParams()      {}
func (FilesLaunch) launchParams()     {}
func (HelpLaunch) launchParams()      {}
func (AboutLaunch) launchParams()     {}
func (UnknownLaunch) launchParams()   {}

// DefaultLaunch returns the zero-configuration variant for kind, stamping
// pid on the variants that display one.
func DefaultLaunch(kind AppKind, pid int) LaunchParams {
	switch kind {
	case AppTerminal:
		return TerminalLaunch{PID: pid}
	case AppInstaller:
		return InstallerLaunch{PID: pid}
	case AppFirefox:
		return BrowserLaunch{PID: pid}
	case AppThunderbird:
		return MailLaunch{}
	case AppFiles:
		return FilesLaunch{}
	case AppHelp:
		return HelpLaunch{}
	case AppAbout:
		return AboutLaunch{}
	default:
		return UnknownLaunch{Requested: string(kind)}
	}
}

// DecodeLaunch builds the typed variant for kind from a JSON object. Empty or
// null raw yields the default variant. Unknown kinds never fail.
func DecodeLaunch(kind string, raw json.RawMessage) (LaunchParams, error) {
	k := AppKind(kind)
	if !k.Known() {
		return UnknownLaunch{Requested: kind}, nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultLaunch(k, 0), nil
	}

	var (
		params LaunchParams
		err    error
	)
	switch k {
	case AppTerminal:
		var p TerminalLaunch
		err = json.Unmarshal(raw, &p)
		params = p
	case AppInstaller:
		var p InstallerLaunch
		err = json.Unmarshal(raw, &p)
		params = p
	case AppFirefox:
		var p BrowserLaunch
		err = json.Unmarshal(raw, &p)
		params = p
	case AppFiles:
		var p FilesLaunch
		err = json.Unmarshal(raw, &p)
		params = p
	case AppHelp:
		var p HelpLaunch
		err = json.Unmarshal(raw, &p)
		params = p
	default:
		params = DefaultLaunch(k, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("launch params for %s: %w", kind, err)
	}
	return params, nil
}
