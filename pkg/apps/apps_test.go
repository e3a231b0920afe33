package apps

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/notify"
	"github.com/antibyte/webdesk/pkg/pid"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

const bundleDoc = `
owner:
  name: Test Owner
  handle: owner
home: [home]
commands:
  - name: whoami
    output: visitor
filesystem:
  home:
    type: folder
    children:
      docs:
        type: folder
        children:
          notes.txt: {type: file, content: "remember the milk"}
      readme.txt: {type: file, content: "hello"}
      hello.sh: {type: shell, content: "echo \"A\"\nopen \"Help\""}
help:
  - id: intro
    title: Intro
    body: Start here.
  - id: terminal
    title: Terminal
    body: Type commands.
mail:
  - from: a@example.com
    subject: First
  - from: b@example.com
    subject: Second
browser:
  home: about:home
  pages:
    - url: about:home
      title: Home
      body: Welcome
    - url: portfolio://projects
      title: Projects
      body: Things I built
`

func newTestDesktop(t *testing.T) (*desktop.Desktop, *scheduler.Manual) {
	t.Helper()
	bundle, err := content.Parse([]byte(bundleDoc))
	if err != nil {
		t.Fatal(err)
	}
	fs := virtualfs.New(bundle)
	interp := shell.New(fs, bundle, pid.NewSeeded(11))
	interp.SetTimings(shell.Timings{
		Canned:         600 * time.Millisecond,
		Installer:      1500 * time.Millisecond,
		SpawnBuffer:    500 * time.Millisecond,
		NavigationStep: 700 * time.Millisecond,
	})
	clock := scheduler.NewManual()
	d := desktop.New(desktop.Config{
		Viewport:        desktop.Size{Width: 1280, Height: 800},
		MinSize:         desktop.Size{Width: 300, Height: 200},
		EdgeMargin:      100,
		TitleBarHeight:  36,
		ResizeHandle:    8,
		CascadeOffset:   32,
		MaxWindows:      10,
		TerminalSize:    desktop.Size{Width: 640, Height: 400},
		ContentSize:     desktop.Size{Width: 960, Height: 640},
		InitialPosition: desktop.Point{X: 48, Y: 48},
	}, notify.NewQueue(10))
	Install(d, Env{Bundle: bundle, FS: fs, Interp: interp, Scheduler: clock})
	return d, clock
}

func contentOf(t *testing.T, d *desktop.Desktop, id string) desktop.Content {
	t.Helper()
	w, ok := d.Window(id)
	if !ok {
		t.Fatalf("window %s not found", id)
	}
	return w.Content
}

func windowsOfKind(d *desktop.Desktop, kind desktop.AppKind) []*desktop.Window {
	var out []*desktop.Window
	for _, w := range d.Windows() {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestInstallRegistersEveryKnownApp(t *testing.T) {
	d, _ := newTestDesktop(t)
	for _, kind := range desktop.KnownApps {
		id := d.OpenApp(string(kind), nil)
		if id == "" {
			t.Fatalf("OpenApp(%s) failed", kind)
		}
		if _, ok := contentOf(t, d, id).(*desktop.Placeholder); ok {
			t.Errorf("%s opened a placeholder", kind)
		}
	}
}

func TestTerminalSubmitSpawnsThroughDesktop(t *testing.T) {
	d, clock := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppTerminal), nil)

	if err := d.HandleInput(id, desktop.Input{Action: "submit", Text: "./hello.sh"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.RunAll()

	if got := len(windowsOfKind(d, desktop.AppHelp)); got != 1 {
		t.Fatalf("Help windows = %d, want 1", got)
	}
	term := contentOf(t, d, id).(*Terminal)
	var found bool
	for _, e := range term.Session().Scrollback() {
		if e.Text == "A" {
			found = true
		}
	}
	if !found {
		t.Errorf("script output missing from scrollback")
	}
}

func TestTerminalKeysAndTitle(t *testing.T) {
	d, _ := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppTerminal), desktop.TerminalLaunch{})
	for _, k := range []string{"p", "w", "d", "Enter"} {
		if err := d.HandleInput(id, desktop.Input{Key: k}); err != nil {
			t.Fatalf("key %q: %v", k, err)
		}
	}
	term := contentOf(t, d, id).(*Terminal)
	lines := term.Session().Scrollback()
	if last := lines[len(lines)-1]; last.Text != "/home" {
		t.Errorf("last line = %q, want /home", last.Text)
	}
	if term.Title() != "Terminal" {
		t.Errorf("title = %q", term.Title())
	}

	child := d.OpenApp(string(desktop.AppTerminal), desktop.TerminalLaunch{Script: "echo \"x\"", PID: 4242})
	w, _ := d.Window(child)
	if w.Title != "Terminal (PID 4242)" {
		t.Errorf("child title = %q", w.Title)
	}
}

func TestClosingTerminalCancelsPendingOutput(t *testing.T) {
	d, clock := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppTerminal), nil)
	term := contentOf(t, d, id).(*Terminal)

	if err := d.HandleInput(id, desktop.Input{Action: "submit", Text: "whoami"}); err != nil {
		t.Fatal(err)
	}
	if term.Session().Pending() == 0 {
		t.Fatal("expected pending canned output")
	}
	if err := d.HandleInput(id, desktop.Input{Action: "close"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Window(id); ok {
		t.Fatal("window still open after close action")
	}
	if term.Session().Pending() != 0 {
		t.Errorf("pending = %d after close", term.Session().Pending())
	}
	before := len(term.Session().Scrollback())
	clock.RunAll()
	if after := len(term.Session().Scrollback()); after != before {
		t.Errorf("scrollback grew from %d to %d after close", before, after)
	}
}

func TestInstallerProgressAndNotification(t *testing.T) {
	d, clock := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppInstaller), desktop.InstallerLaunch{
		Script: "echo \"unpacking\"\nsleep 1\necho \"done\"",
		PID:    4242,
	})
	inst := contentOf(t, d, id).(*Installer)
	if inst.Title() != "Installer (PID 4242)" {
		t.Errorf("title = %q", inst.Title())
	}
	if inst.Done() || inst.Progress() != 0 {
		t.Fatalf("fresh installer: done=%v progress=%v", inst.Done(), inst.Progress())
	}
	if err := d.HandleInput(id, desktop.Input{Action: "finish"}); err == nil {
		t.Error("finish accepted before the install completed")
	}

	clock.Advance(0)
	if p := inst.Progress(); p != 0.5 {
		t.Errorf("progress after first step = %v, want 0.5", p)
	}
	clock.Advance(time.Second)
	if !inst.Done() || inst.Progress() != 1 {
		t.Fatalf("after all steps: done=%v progress=%v", inst.Done(), inst.Progress())
	}

	notes := d.Notifications().Pending()
	if len(notes) != 1 || notes[0].Title != "Installation complete" {
		t.Errorf("notifications = %+v", notes)
	}

	if err := d.HandleInput(id, desktop.Input{Action: "finish"}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, ok := d.Window(id); ok {
		t.Error("installer window still open after finish")
	}
}

func TestFirefoxActions(t *testing.T) {
	d, _ := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppFirefox), desktop.BrowserLaunch{PID: 1337})
	ff := contentOf(t, d, id).(*Firefox)

	if ff.Title() != "Home - Firefox (PID 1337)" {
		t.Errorf("title = %q", ff.Title())
	}
	if err := d.HandleInput(id, desktop.Input{Action: "navigate", Arg: "portfolio://projects"}); err != nil {
		t.Fatal(err)
	}
	w, _ := d.Window(id)
	if !strings.HasPrefix(w.Title, "Projects") {
		t.Errorf("window title after navigate = %q", w.Title)
	}
	if err := d.HandleInput(id, desktop.Input{Action: "back"}); err != nil {
		t.Fatal(err)
	}
	if got := ff.Browser().Current().URL; got != "about:home" {
		t.Errorf("after back url = %q", got)
	}
	if err := d.HandleInput(id, desktop.Input{Action: "newtab"}); err != nil {
		t.Fatal(err)
	}
	if ff.Browser().TabCount() != 2 {
		t.Errorf("tabs = %d, want 2", ff.Browser().TabCount())
	}
	if err := d.HandleInput(id, desktop.Input{Action: "print"}); !errors.Is(err, desktop.ErrUnsupportedInput) {
		t.Errorf("unknown action err = %v", err)
	}
}

func TestFilesNavigation(t *testing.T) {
	d, _ := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppFiles), nil)
	files := contentOf(t, d, id).(*Files)

	if got := virtualfs.FormatPath(files.Cwd()); got != "/home" {
		t.Fatalf("cwd = %q, want /home", got)
	}
	view := files.Snapshot().(FilesView)
	if len(view.Items) != 3 || view.Items[0].Name != "docs" || view.Items[0].Type != "folder" {
		t.Fatalf("items = %+v", view.Items)
	}

	if err := d.HandleInput(id, desktop.Input{Action: "open", Arg: "docs"}); err != nil {
		t.Fatal(err)
	}
	if got := virtualfs.FormatPath(files.Cwd()); got != "/home/docs" {
		t.Errorf("cwd after open = %q", got)
	}
	if err := d.HandleInput(id, desktop.Input{Action: "open", Arg: "notes.txt"}); err != nil {
		t.Fatal(err)
	}
	preview := files.Snapshot().(FilesView).Preview
	if preview == nil || preview.Content != "remember the milk" {
		t.Errorf("preview = %+v", preview)
	}
	if err := d.HandleInput(id, desktop.Input{Action: "open", Arg: "missing"}); err == nil {
		t.Error("opening a missing entry should fail")
	}

	for i := 0; i < 3; i++ {
		if err := d.HandleInput(id, desktop.Input{Action: "up"}); err != nil {
			t.Fatal(err)
		}
	}
	if got := virtualfs.FormatPath(files.Cwd()); got != "/" {
		t.Errorf("cwd after going up past root = %q", got)
	}
}

func TestFilesRunsShellNodeInChildTerminal(t *testing.T) {
	d, _ := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppFiles), desktop.FilesLaunch{Path: "/home"})
	if err := d.HandleInput(id, desktop.Input{Action: "open", Arg: "hello.sh"}); err != nil {
		t.Fatal(err)
	}
	terms := windowsOfKind(d, desktop.AppTerminal)
	if len(terms) != 1 {
		t.Fatalf("terminal windows = %d, want 1", len(terms))
	}
	launch := terms[0].Launch.(desktop.TerminalLaunch)
	if launch.PID < pid.Min || launch.PID > pid.Max {
		t.Errorf("pid %d out of range", launch.PID)
	}
	if !strings.Contains(launch.Script, "open \"Help\"") {
		t.Errorf("script = %q", launch.Script)
	}
}

func TestMailHelpAbout(t *testing.T) {
	d, _ := newTestDesktop(t)

	mailID := d.OpenApp(string(desktop.AppThunderbird), nil)
	if err := d.HandleInput(mailID, desktop.Input{Action: "select", Arg: "1"}); err != nil {
		t.Fatal(err)
	}
	if view := contentOf(t, d, mailID).Snapshot().(MailView); view.Selected != 1 {
		t.Errorf("selected = %d, want 1", view.Selected)
	}
	if err := d.HandleInput(mailID, desktop.Input{Action: "select", Arg: "7"}); err == nil {
		t.Error("out of range selection accepted")
	}

	helpID := d.OpenApp(string(desktop.AppHelp), desktop.HelpLaunch{Topic: "terminal"})
	w, _ := d.Window(helpID)
	if w.Title != "Help - Terminal" {
		t.Errorf("help title = %q", w.Title)
	}
	if err := d.HandleInput(helpID, desktop.Input{Action: "topic", Arg: "intro"}); err != nil {
		t.Fatal(err)
	}
	if view := contentOf(t, d, helpID).Snapshot().(HelpView); view.Active != "intro" {
		t.Errorf("active topic = %q", view.Active)
	}

	aboutID := d.OpenApp(string(desktop.AppAbout), nil)
	if view := contentOf(t, d, aboutID).Snapshot().(AboutView); view.Name != "Test Owner" {
		t.Errorf("about name = %q", view.Name)
	}
	if err := d.HandleInput(aboutID, desktop.Input{Action: "maximize"}); err != nil {
		t.Fatal(err)
	}
	if w, _ := d.Window(aboutID); !w.Maximized {
		t.Error("maximize action ignored")
	}
}

func TestNewDesktopOpensTerminal(t *testing.T) {
	bundle, err := content.Parse([]byte(bundleDoc))
	if err != nil {
		t.Fatal(err)
	}
	fs := virtualfs.New(bundle)
	env := Env{Bundle: bundle, FS: fs, Interp: shell.New(fs, bundle, pid.NewSeeded(3)), Scheduler: scheduler.NewManual()}

	d := NewDesktop(env, desktop.ConfigFromSettings(), 5, true)
	if got := windowsOfKind(d, desktop.AppTerminal); len(got) != 1 {
		t.Fatalf("terminals = %d, want 1", len(got))
	}
	if empty := NewDesktop(env, desktop.ConfigFromSettings(), 5, false); len(empty.Windows()) != 0 {
		t.Errorf("desktop without terminal has %d windows", len(empty.Windows()))
	}
}

func TestMinimizedTerminalKeepsScrollback(t *testing.T) {
	d, clock := newTestDesktop(t)
	id := d.OpenApp(string(desktop.AppTerminal), desktop.TerminalLaunch{})
	for _, line := range []string{"pwd", "whoami"} {
		if err := d.HandleInput(id, desktop.Input{Action: "submit", Text: line}); err != nil {
			t.Fatalf("submit %q: %v", line, err)
		}
		clock.RunAll()
	}
	term := contentOf(t, d, id).(*Terminal)
	before := term.Session().Scrollback()
	if len(before) != 5 {
		t.Fatalf("scrollback has %d entries, want 5: %+v", len(before), before)
	}

	if !d.SetMinimized(id, true) {
		t.Fatal("minimize failed")
	}
	clock.Advance(time.Minute)
	if !d.SetMinimized(id, false) {
		t.Fatal("restore failed")
	}

	w, ok := d.Window(id)
	if !ok || w.Minimized {
		t.Fatal("terminal should be restored")
	}
	if w.Content != desktop.Content(term) {
		t.Error("restore must keep the mounted terminal")
	}
	after := term.Session().Scrollback()
	if len(after) != len(before) {
		t.Fatalf("scrollback has %d entries after restore, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("entry %d = %+v, want %+v", i, after[i], before[i])
		}
	}
}
