package apps

import (
	"fmt"

	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/session"
)

// Terminal hosts one shell session.
type Terminal struct {
	chrome
	session *session.Session
}

// NewTerminal starts a session. A launch with a script is a child process
// that keeps the PID its parent announced.
func NewTerminal(env Env, host desktop.Host, launch desktop.TerminalLaunch) *Terminal {
	s := session.New(env.Interp, env.Scheduler, host)
	s.Start(launch.Script, launch.PID)
	return &Terminal{session: s}
}

func (t *Terminal) Title() string {
	if pid := t.session.PID(); pid != 0 {
		return fmt.Sprintf("Terminal (PID %d)", pid)
	}
	return "Terminal"
}

// Session exposes the underlying session.
func (t *Terminal) Session() *session.Session { return t.session }

// TerminalView is the terminal's snapshot.
type TerminalView struct {
	Kind      string `json:"kind"`
	Maximized bool   `json:"maximized"`
	session.Snapshot
}

func (t *Terminal) Snapshot() any {
	return TerminalView{Kind: "terminal", Maximized: t.maximized(), Snapshot: t.session.Snapshot()}
}

// HandleInput accepts key presses, or a whole line with action "submit".
func (t *Terminal) HandleInput(in desktop.Input) error {
	if t.handleChrome(in) {
		return nil
	}
	switch {
	case in.Key != "":
		t.session.HandleKey(in.Key)
	case in.Action == "submit":
		t.session.SetInput(in.Text)
		if !t.session.Processing() {
			t.session.Submit()
		}
	default:
		return desktop.ErrUnsupportedInput
	}
	return nil
}

func (t *Terminal) Close() { t.session.Close() }
