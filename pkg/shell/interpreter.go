// Package shell interprets one line of terminal input against the shared
// virtual filesystem. It never touches session or window state; every effect
// is described in the returned Outcome and applied by the caller.
package shell

import (
	"sort"
	"strings"
	"time"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/pid"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

// ScriptSuffix marks a token as an executable reference.
const ScriptSuffix = ".sh"

// builtins in resolution order. They always win over canned commands.
var builtins = []string{"clear", "pwd", "ls", "cd", "tree", "cat"}

// appAliases maps the lowercased names accepted by `open` and spawned from
// scripts to app kinds.
var appAliases = map[string]desktop.AppKind{
	"terminal":    desktop.AppTerminal,
	"shell":       desktop.AppTerminal,
	"installer":   desktop.AppInstaller,
	"firefox":     desktop.AppFirefox,
	"browser":     desktop.AppFirefox,
	"thunderbird": desktop.AppThunderbird,
	"mail":        desktop.AppThunderbird,
	"files":       desktop.AppFiles,
	"nautilus":    desktop.AppFiles,
	"help":        desktop.AppHelp,
	"about":       desktop.AppAbout,
}

// AppAlias normalises an application name. Unknown names report false.
func AppAlias(name string) (desktop.AppKind, bool) {
	kind, ok := appAliases[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// Timings are the simulated delays.
type Timings struct {
	Canned         time.Duration
	Installer      time.Duration
	SpawnBuffer    time.Duration
	NavigationStep time.Duration
}

// TimingsFromConfig reads the [Terminal] section.
func TimingsFromConfig() Timings {
	return Timings{
		Canned:         configuration.GetDuration("Terminal", "canned_delay", 600*time.Millisecond),
		Installer:      configuration.GetDuration("Terminal", "installer_delay", 1500*time.Millisecond),
		SpawnBuffer:    configuration.GetDuration("Terminal", "spawn_buffer", 500*time.Millisecond),
		NavigationStep: configuration.GetDuration("Terminal", "navigation_step", 700*time.Millisecond),
	}
}

// Outcome describes the effect of one submitted line. Entries appear
// immediately, Deferred steps are scheduled relative to now.
type Outcome struct {
	Category Category
	Clear    bool
	Cwd      virtualfs.Path
	Entries  []Entry
	Deferred []Step
	// Blocking suppresses input until the last deferred step fired.
	Blocking bool
}

// Interpreter is stateless between calls and may be shared by all sessions.
type Interpreter struct {
	fs      *virtualfs.VFS
	bundle  *content.Bundle
	pids    *pid.Generator
	timings Timings

	navigationPID  int
	maxScriptLines int
}

// New creates an interpreter over fs using the command table from bundle.
func New(fs *virtualfs.VFS, bundle *content.Bundle, pids *pid.Generator) *Interpreter {
	return &Interpreter{
		fs:             fs,
		bundle:         bundle,
		pids:           pids,
		timings:        TimingsFromConfig(),
		navigationPID:  configuration.GetInt("Terminal", "navigation_fixed_id", 1337),
		maxScriptLines: configuration.GetInt("Terminal", "max_script_lines", 256),
	}
}

// SetTimings replaces the configured delays.
func (in *Interpreter) SetTimings(t Timings) { in.timings = t }

func (in *Interpreter) Timings() Timings { return in.timings }

// FS returns the filesystem the interpreter resolves against.
func (in *Interpreter) FS() *virtualfs.VFS { return in.fs }

// NextPID draws a synthetic PID from the shared generator.
func (in *Interpreter) NextPID() int { return in.pids.Next() }

// Execute interprets line with cwd as working directory.
func (in *Interpreter) Execute(line string, cwd virtualfs.Path) Outcome {
	out := Outcome{Cwd: cwd.Clone(), Category: CategoryBuiltin}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		out.Category = CategoryEmpty
		return out
	}
	cmd, args := fields[0], fields[1:]
	logger.Debug(logger.AreaShell, "Execute %q in %s", line, virtualfs.FormatPath(cwd))

	switch {
	case cmd == "clear":
		out.Clear = true
	case isExecutable(cmd):
		out.Category = CategoryScript
		in.cmdExecute(&out, cmd)
	case cmd == "pwd":
		in.cmdPwd(&out)
	case cmd == "ls":
		in.cmdLs(&out, args)
	case cmd == "cd":
		in.cmdCd(&out, args)
	case cmd == "tree":
		in.cmdTree(&out)
	case cmd == "cat":
		in.cmdCat(&out, args)
	default:
		in.cmdCanned(&out, cmd)
	}
	return out
}

func isExecutable(token string) bool {
	name := strings.TrimPrefix(token, "./")
	return strings.HasSuffix(name, ScriptSuffix) && len(name) > len(ScriptSuffix)
}

// cmdCanned looks the token up in the static command table.
func (in *Interpreter) cmdCanned(out *Outcome, cmd string) {
	command, ok := in.bundle.Command(cmd)
	if !ok {
		out.Category = CategoryUnknown
		out.Entries = append(out.Entries, Errorf("command not found: %s", cmd))
		return
	}
	out.Category = CategoryCanned
	out.Blocking = true
	out.Deferred = append(out.Deferred, entryStep(in.timings.Canned, Styled(StyleBlock, strings.TrimRight(command.Output, "\n"))))
}

// Commands returns the completion table: builtins followed by canned names.
func (in *Interpreter) Commands() []string {
	names := append([]string(nil), builtins...)
	for _, c := range in.bundle.Commands {
		names = append(names, c.Name)
	}
	return names
}

// Complete returns the single command starting with prefix. Ambiguous or
// missing matches report false.
func (in *Interpreter) Complete(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	var matches []string
	seen := make(map[string]bool)
	for _, name := range in.Commands() {
		if strings.HasPrefix(name, prefix) && !seen[name] {
			seen[name] = true
			matches = append(matches, name)
		}
	}
	if len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}

// sortSteps orders steps by delay, keeping schedule order for equal delays.
func sortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Delay < steps[j].Delay })
}
