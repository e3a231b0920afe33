package apps

import (
	"fmt"

	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/session"
	"github.com/antibyte/webdesk/pkg/shell"
)

// Installer runs an installer script in a read-only log and tracks how many
// of its steps have played.
type Installer struct {
	chrome
	session *session.Session
	host    desktop.Host
	total   int
	done    bool
}

func NewInstaller(env Env, host desktop.Host, launch desktop.InstallerLaunch) *Installer {
	in := &Installer{
		session: session.New(env.Interp, env.Scheduler, host),
		host:    host,
		total:   len(env.Interp.RunScript(launch.Script, launch.PID)),
	}
	in.session.OnChange(in.checkDone)
	in.session.Start(launch.Script, launch.PID)
	if in.total == 0 {
		in.done = true
	}
	return in
}

func (in *Installer) checkDone() {
	if in.done || in.session.StepsFired() < in.total {
		return
	}
	in.done = true
	if in.host != nil {
		in.host.Notify("Installation complete", fmt.Sprintf("Process %d finished", in.session.PID()))
	}
}

func (in *Installer) Title() string {
	return fmt.Sprintf("Installer (PID %d)", in.session.PID())
}

// Progress is the fraction of steps played, in [0, 1].
func (in *Installer) Progress() float64 {
	if in.total == 0 {
		return 1
	}
	p := float64(in.session.StepsFired()) / float64(in.total)
	if p > 1 {
		p = 1
	}
	return p
}

func (in *Installer) Done() bool { return in.done }

type InstallerView struct {
	Kind     string        `json:"kind"`
	PID      int           `json:"pid"`
	Progress float64       `json:"progress"`
	Done     bool          `json:"done"`
	Log      []shell.Entry `json:"log"`
}

func (in *Installer) Snapshot() any {
	return InstallerView{
		Kind:     "installer",
		PID:      in.session.PID(),
		Progress: in.Progress(),
		Done:     in.done,
		Log:      in.session.Scrollback(),
	}
}

// HandleInput only accepts window actions; "finish" closes a completed install.
func (in *Installer) HandleInput(i desktop.Input) error {
	if in.handleChrome(i) {
		return nil
	}
	if i.Action == "finish" && in.done && in.controls != nil {
		in.controls.Close()
		return nil
	}
	return desktop.ErrUnsupportedInput
}

func (in *Installer) Close() { in.session.Close() }
