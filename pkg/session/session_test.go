package session

import (
	"testing"
	"time"

	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/pid"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

const bundleDoc = `
home: [home]
commands:
  - name: whoami
    output: visitor
filesystem:
  home:
    type: folder
    children:
      docs: {type: folder}
      hello.sh: {type: shell, content: "echo \"A\"\nsleep 1\necho \"B\"\nopen \"Help\""}
`

type recordingOpener struct {
	kinds  []string
	params []desktop.LaunchParams
}

func (r *recordingOpener) OpenApp(kind string, params desktop.LaunchParams) string {
	r.kinds = append(r.kinds, kind)
	r.params = append(r.params, params)
	return "win"
}

func newSession(t *testing.T) (*Session, *scheduler.Manual, *recordingOpener) {
	t.Helper()
	bundle, err := content.Parse([]byte(bundleDoc))
	if err != nil {
		t.Fatal(err)
	}
	interp := shell.New(virtualfs.New(bundle), bundle, pid.NewSeeded(3))
	interp.SetTimings(shell.Timings{
		Canned:         600 * time.Millisecond,
		Installer:      1500 * time.Millisecond,
		SpawnBuffer:    500 * time.Millisecond,
		NavigationStep: 700 * time.Millisecond,
	})
	clock := scheduler.NewManual()
	opener := &recordingOpener{}
	return New(interp, clock, opener), clock, opener
}

func typeLine(s *Session, line string) {
	for _, r := range line {
		s.HandleKey(string(r))
	}
	s.HandleKey(KeyEnter)
}

func TestHistoryNavigation(t *testing.T) {
	s, _, _ := newSession(t)
	typeLine(s, "ls")
	typeLine(s, "pwd")

	steps := []struct {
		key  string
		want string
	}{
		{KeyArrowUp, "pwd"},
		{KeyArrowUp, "ls"},
		{KeyArrowDown, "pwd"},
		{KeyArrowDown, ""},
	}
	for i, step := range steps {
		s.HandleKey(step.key)
		if got := s.Input(); got != step.want {
			t.Errorf("step %d (%s): input = %q, want %q", i, step.key, got, step.want)
		}
	}
}

func TestTypingAbandonsHistory(t *testing.T) {
	s, _, _ := newSession(t)
	typeLine(s, "ls")
	s.HandleKey(KeyArrowUp)
	s.HandleKey("x")
	if s.Input() != "lsx" {
		t.Fatalf("input = %q", s.Input())
	}
	// Back on the live line, Down has nothing to do.
	if s.HandleKey(KeyArrowDown) {
		t.Error("down on the live line should be a no-op")
	}
}

func TestCursorEditing(t *testing.T) {
	s, _, _ := newSession(t)
	for _, k := range []string{"a", "c", KeyArrowLeft, "b", KeyHome, KeyArrowLeft, "_", KeyEnd, KeyArrowRight} {
		s.HandleKey(k)
	}
	if s.Input() != "_abc" || s.Cursor() != 4 {
		t.Errorf("input %q cursor %d", s.Input(), s.Cursor())
	}
	s.HandleKey(KeyBackspace)
	s.HandleKey(KeyHome)
	s.HandleKey(KeyDelete)
	if s.Input() != "ab" || s.Cursor() != 0 {
		t.Errorf("after deletes: input %q cursor %d", s.Input(), s.Cursor())
	}
	if s.HandleKey("Shift") {
		t.Error("named non-printable keys must be ignored")
	}
}

func TestTabCompletion(t *testing.T) {
	s, _, _ := newSession(t)
	s.HandleKey("w")
	s.HandleKey(KeyTab)
	if s.Input() != "whoami" || s.Cursor() != len("whoami") {
		t.Errorf("completion gave %q at %d", s.Input(), s.Cursor())
	}
	s.SetInput("c")
	if s.HandleKey(KeyTab) {
		t.Error("ambiguous prefix should not complete")
	}
}

func TestCommandEchoAndCd(t *testing.T) {
	s, _, _ := newSession(t)
	typeLine(s, "cd docs")
	typeLine(s, "cd nowhere")

	lines := s.Scrollback()
	if len(lines) != 3 {
		t.Fatalf("expected 2 echoes + 1 error, got %+v", lines)
	}
	if lines[0].Kind != shell.KindCommand || lines[0].Cwd != "/home" {
		t.Errorf("first echo = %+v", lines[0])
	}
	if lines[1].Cwd != "/home/docs" || lines[2].Kind != shell.KindError {
		t.Errorf("unexpected entries %+v", lines[1:])
	}
	if got := virtualfs.FormatPath(s.Cwd()); got != "/home/docs" {
		t.Errorf("cwd = %s", got)
	}
}

func TestCannedCommandSuppressesInput(t *testing.T) {
	s, clock, _ := newSession(t)
	typeLine(s, "whoami")
	if !s.Processing() {
		t.Fatal("canned command should set processing")
	}
	if s.HandleKey("x") {
		t.Error("keys must be ignored while processing")
	}
	clock.Advance(600 * time.Millisecond)
	if s.Processing() {
		t.Error("processing should end with the last step")
	}
	lines := s.Scrollback()
	if last := lines[len(lines)-1]; last.Text != "visitor" {
		t.Errorf("last line = %+v", last)
	}
}

func TestScriptDoesNotBlockAndSpawns(t *testing.T) {
	s, clock, opener := newSession(t)
	typeLine(s, "./hello.sh")
	if s.Processing() {
		t.Fatal("scripts must not block input")
	}
	if !s.HandleKey("x") {
		t.Error("typing should work while a script runs")
	}

	clock.Advance(999 * time.Millisecond)
	if n := len(s.Scrollback()); n != 2 {
		t.Fatalf("expected echo + A before 1s, got %d entries", n)
	}
	clock.Advance(time.Second)
	if len(opener.kinds) != 1 || opener.kinds[0] != string(desktop.AppHelp) {
		t.Errorf("expected Help spawn, got %v", opener.kinds)
	}
	lines := s.Scrollback()
	if lines[1].Text != "A" || lines[2].Text != "B" {
		t.Errorf("unexpected output order %+v", lines)
	}
}

func TestCloseCancelsPendingOutput(t *testing.T) {
	s, clock, opener := newSession(t)
	typeLine(s, "./hello.sh")
	before := len(s.Scrollback())
	s.Close()
	clock.RunAll()
	if len(s.Scrollback()) != before || len(opener.kinds) != 0 {
		t.Error("no output or spawn may happen after Close")
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after close", s.Pending())
	}
}

func TestChildProcessBanner(t *testing.T) {
	s, clock, _ := newSession(t)
	s.Start("echo \"child $$\"", 4242)
	clock.RunAll()
	lines := s.Scrollback()
	if len(lines) != 2 || lines[0].Text != "[process 4242] started" || lines[1].Text != "child 4242" {
		t.Errorf("unexpected child output %+v", lines)
	}
	if s.Snapshot().PID != 4242 {
		t.Error("snapshot should carry the announced PID")
	}
}

func TestClearWipesScrollback(t *testing.T) {
	s, _, _ := newSession(t)
	typeLine(s, "pwd")
	seq := s.Snapshot().ScrollSeq
	typeLine(s, "clear")
	if len(s.Scrollback()) != 0 {
		t.Errorf("clear left %d entries", len(s.Scrollback()))
	}
	if s.Snapshot().ScrollSeq == seq {
		t.Error("scroll sequence should move on clear")
	}
}
