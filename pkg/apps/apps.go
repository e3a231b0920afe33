// Package apps implements the window contents the desktop can host and
// registers them on a desktop.
package apps

import (
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/notify"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

// Env carries the shared, read-only pieces every app needs plus the
// scheduler of the desktop the apps run on.
type Env struct {
	Bundle    *content.Bundle
	FS        *virtualfs.VFS
	Interp    *shell.Interpreter
	Scheduler scheduler.Scheduler
}

// Install registers every app kind on d.
func Install(d *desktop.Desktop, env Env) {
	d.Register(desktop.AppTerminal, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		launch, _ := p.(desktop.TerminalLaunch)
		return NewTerminal(env, host, launch)
	})
	d.Register(desktop.AppInstaller, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		launch, _ := p.(desktop.InstallerLaunch)
		return NewInstaller(env, host, launch)
	})
	d.Register(desktop.AppFirefox, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		launch, _ := p.(desktop.BrowserLaunch)
		return NewFirefox(env, launch)
	})
	d.Register(desktop.AppThunderbird, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		return NewMail(env)
	})
	d.Register(desktop.AppFiles, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		launch, _ := p.(desktop.FilesLaunch)
		return NewFiles(env, host, launch)
	})
	d.Register(desktop.AppHelp, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		launch, _ := p.(desktop.HelpLaunch)
		return NewHelp(env, launch)
	})
	d.Register(desktop.AppAbout, func(host desktop.Host, p desktop.LaunchParams) desktop.Content {
		return NewAbout(env)
	})
}

// NewDesktop builds a desktop with every app installed. With openTerminal
// set it starts with one terminal window, the way a fresh visit does.
func NewDesktop(env Env, cfg desktop.Config, maxNotifications int, openTerminal bool) *desktop.Desktop {
	d := desktop.New(cfg, notify.NewQueue(maxNotifications))
	Install(d, env)
	if openTerminal {
		d.OpenApp(string(desktop.AppTerminal), desktop.TerminalLaunch{})
	}
	return d
}

// chrome handles the window-control actions every app accepts.
type chrome struct {
	controls desktop.Controls
}

func (c *chrome) Bind(controls desktop.Controls) { c.controls = controls }

// handleChrome reports whether in was a window-control action.
func (c *chrome) handleChrome(in desktop.Input) bool {
	if c.controls == nil {
		return false
	}
	switch in.Action {
	case "close":
		c.controls.Close()
	case "minimize":
		c.controls.Minimize()
	case "maximize":
		c.controls.ToggleMaximize()
	default:
		return false
	}
	return true
}

func (c *chrome) maximized() bool {
	return c.controls != nil && c.controls.IsMaximized()
}
