// Package session holds the state of one terminal window: scrollback, the
// live input line, command history and the working directory. Delayed output
// is scheduled through a task group that Close cancels.
package session

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/metrics"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

// Opener turns spawn requests into windows.
type Opener interface {
	OpenApp(kind string, params desktop.LaunchParams) string
}

// Key names as delivered by the browser.
const (
	KeyEnter      = "Enter"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyTab        = "Tab"
	KeyBackspace  = "Backspace"
	KeyDelete     = "Delete"
	KeyHome       = "Home"
	KeyEnd        = "End"
)

// noHistory marks the live input line.
const noHistory = -1

// Session is one terminal. It is not safe for concurrent use; the desktop
// loop serialises every call.
type Session struct {
	interp *shell.Interpreter
	tasks  *scheduler.Group
	opener Opener

	scrollback   []shell.Entry
	scrollSeq    uint64
	input        []rune
	cursor       int
	history      []string
	historyIndex int
	cwd          virtualfs.Path
	processing   bool
	pid          int
	closed       bool
	fired        int

	maxScrollback int
	maxHistory    int
	maxInput      int

	onChange func()
}

// New creates a session in the home directory.
func New(interp *shell.Interpreter, sched scheduler.Scheduler, opener Opener) *Session {
	return &Session{
		interp:        interp,
		tasks:         scheduler.NewGroup(sched),
		opener:        opener,
		historyIndex:  noHistory,
		cwd:           interp.FS().HomePath(),
		maxScrollback: configuration.GetInt("Terminal", "max_scrollback", 1000),
		maxHistory:    configuration.GetInt("Terminal", "max_history", 200),
		maxInput:      configuration.GetInt("Terminal", "max_input_length", 512),
	}
}

// OnChange registers fn to run after every asynchronous state change.
func (s *Session) OnChange(fn func()) { s.onChange = fn }

// Start prints the banner. A child-process session reuses the PID its parent
// already announced and runs script.
func (s *Session) Start(script string, pid int) {
	s.pid = pid
	if script == "" {
		s.appendEntry(shell.Styled(shell.StyleStatus, "webdesk terminal - type 'help' to get started."))
		return
	}
	s.appendEntry(shell.Styled(shell.StyleStatus, fmt.Sprintf("[process %d] started", pid)))
	s.schedule(s.interp.RunScript(script, pid), false)
}

// PID returns the synthetic PID shown in the title, 0 for the root terminal.
func (s *Session) PID() int { return s.pid }

// HandleKey applies one key press. It reports whether state changed.
func (s *Session) HandleKey(key string) bool {
	if s.closed || s.processing {
		return false
	}
	switch key {
	case KeyEnter:
		s.Submit()
	case KeyArrowUp:
		return s.historyUp()
	case KeyArrowDown:
		return s.historyDown()
	case KeyArrowLeft:
		if s.cursor == 0 {
			return false
		}
		s.cursor--
	case KeyArrowRight:
		if s.cursor == len(s.input) {
			return false
		}
		s.cursor++
	case KeyHome:
		s.cursor = 0
	case KeyEnd:
		s.cursor = len(s.input)
	case KeyTab:
		return s.complete()
	case KeyBackspace:
		if s.cursor == 0 {
			return false
		}
		s.input = append(s.input[:s.cursor-1], s.input[s.cursor:]...)
		s.cursor--
		s.historyIndex = noHistory
	case KeyDelete:
		if s.cursor == len(s.input) {
			return false
		}
		s.input = append(s.input[:s.cursor], s.input[s.cursor+1:]...)
		s.historyIndex = noHistory
	default:
		r, size := utf8.DecodeRuneInString(key)
		if size != len(key) || r == utf8.RuneError || r < 0x20 || r == 0x7f {
			return false
		}
		return s.insert(r)
	}
	return true
}

func (s *Session) insert(r rune) bool {
	if s.maxInput > 0 && len(s.input) >= s.maxInput {
		return false
	}
	s.input = append(s.input, 0)
	copy(s.input[s.cursor+1:], s.input[s.cursor:])
	s.input[s.cursor] = r
	s.cursor++
	s.historyIndex = noHistory
	return true
}

// SetInput replaces the live line, for clients that send whole lines.
func (s *Session) SetInput(text string) {
	if s.closed || s.processing {
		return
	}
	s.input = []rune(text)
	if s.maxInput > 0 && len(s.input) > s.maxInput {
		s.input = s.input[:s.maxInput]
	}
	s.cursor = len(s.input)
	s.historyIndex = noHistory
}

func (s *Session) historyUp() bool {
	if len(s.history) == 0 {
		return false
	}
	switch {
	case s.historyIndex == noHistory:
		s.historyIndex = len(s.history) - 1
	case s.historyIndex > 0:
		s.historyIndex--
	default:
		return false
	}
	s.setLine(s.history[s.historyIndex])
	return true
}

func (s *Session) historyDown() bool {
	if s.historyIndex == noHistory {
		return false
	}
	if s.historyIndex < len(s.history)-1 {
		s.historyIndex++
		s.setLine(s.history[s.historyIndex])
		return true
	}
	s.historyIndex = noHistory
	s.setLine("")
	return true
}

func (s *Session) setLine(text string) {
	s.input = []rune(text)
	s.cursor = len(s.input)
}

func (s *Session) complete() bool {
	match, ok := s.interp.Complete(string(s.input))
	if !ok {
		return false
	}
	s.setLine(match)
	return true
}

// Submit runs the live input line.
func (s *Session) Submit() {
	line := string(s.input)
	s.input = s.input[:0]
	s.cursor = 0
	s.historyIndex = noHistory

	s.appendEntry(shell.CommandEntry(line, virtualfs.FormatPath(s.cwd)))
	if line != "" {
		s.history = append(s.history, line)
		if s.maxHistory > 0 && len(s.history) > s.maxHistory {
			s.history = s.history[len(s.history)-s.maxHistory:]
		}
	}

	outcome := s.interp.Execute(line, s.cwd)
	metrics.RecordCommand(string(outcome.Category))
	s.apply(outcome)
}

func (s *Session) apply(out shell.Outcome) {
	if out.Clear {
		s.scrollback = nil
		s.scrollSeq++
	}
	s.cwd = out.Cwd
	for _, e := range out.Entries {
		s.appendEntry(e)
	}
	s.schedule(out.Deferred, out.Blocking)
}

// schedule runs steps in order. Each firing schedules the next batch, so
// steps never overtake each other even on a real clock.
func (s *Session) schedule(steps []shell.Step, blocking bool) {
	if len(steps) == 0 {
		return
	}
	if blocking {
		s.processing = true
	}
	s.scheduleFrom(steps, 0, 0, blocking)
}

func (s *Session) scheduleFrom(steps []shell.Step, i int, elapsed time.Duration, blocking bool) {
	at := steps[i].Delay
	s.tasks.After(at-elapsed, func() {
		j := i
		for ; j < len(steps) && steps[j].Delay == at; j++ {
			s.fire(steps[j])
		}
		if j < len(steps) {
			s.scheduleFrom(steps, j, at, blocking)
		} else if blocking {
			s.processing = false
		}
		if s.onChange != nil {
			s.onChange()
		}
	})
}

func (s *Session) fire(step shell.Step) {
	s.fired++
	if step.Entry != nil {
		s.appendEntry(*step.Entry)
	}
	if step.Spawn != nil && s.opener != nil {
		logger.Debug(logger.AreaSession, "Spawning %s from terminal", step.Spawn.Kind)
		s.opener.OpenApp(string(step.Spawn.Kind), step.Spawn.Launch)
	}
}

func (s *Session) appendEntry(e shell.Entry) {
	s.scrollback = append(s.scrollback, e)
	if s.maxScrollback > 0 && len(s.scrollback) > s.maxScrollback {
		s.scrollback = append([]shell.Entry(nil), s.scrollback[len(s.scrollback)-s.maxScrollback:]...)
	}
	s.scrollSeq++
}

// Close cancels every pending timer. Later calls are no-ops.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.tasks.Close()
}

// Pending returns the number of scheduled steps not yet run.
func (s *Session) Pending() int { return s.tasks.Pending() }

func (s *Session) Processing() bool { return s.processing }

// StepsFired counts deferred steps run since the session started.
func (s *Session) StepsFired() int { return s.fired }

func (s *Session) Cwd() virtualfs.Path { return s.cwd.Clone() }

func (s *Session) Input() string { return string(s.input) }

func (s *Session) Cursor() int { return s.cursor }

// Scrollback returns a copy of the entries.
func (s *Session) Scrollback() []shell.Entry {
	return append([]shell.Entry(nil), s.scrollback...)
}

// Snapshot is what the renderer needs to draw the terminal. ScrollSeq grows
// whenever entries are appended; the client pins to the bottom when it changes.
type Snapshot struct {
	Lines      []shell.Entry `json:"lines"`
	Input      string        `json:"input"`
	Cursor     int           `json:"cursor"`
	Prompt     string        `json:"prompt"`
	Processing bool          `json:"processing"`
	PID        int           `json:"pid,omitempty"`
	ScrollSeq  uint64        `json:"scrollSeq"`
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Lines:      s.Scrollback(),
		Input:      string(s.input),
		Cursor:     s.cursor,
		Prompt:     virtualfs.FormatPath(s.cwd),
		Processing: s.processing,
		PID:        s.pid,
		ScrollSeq:  s.scrollSeq,
	}
}
