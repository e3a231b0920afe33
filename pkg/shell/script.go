package shell

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

// PIDPlaceholder inside an echo line is replaced by the execution's PID.
const PIDPlaceholder = "$$"

// cmdExecute runs an executable reference such as ./deploy.sh.
func (in *Interpreter) cmdExecute(out *Outcome, token string) {
	name := strings.TrimPrefix(token, "./")
	node, ok := in.fs.GetNode(in.fs.ResolvePath(out.Cwd, name))
	if !ok {
		out.Entries = append(out.Entries, Errorf("no such file or directory: %s", token))
		return
	}
	if node.Type != virtualfs.Shell {
		out.Entries = append(out.Entries, Errorf("permission denied: %s", token))
		return
	}

	switch {
	case in.bundle.IsInstaller(node.Name):
		in.runInstaller(out, node)
	case in.bundle.Scripts.Navigation[node.Name] != "":
		in.runNavigation(out, node.Name, in.bundle.Scripts.Navigation[node.Name])
	default:
		out.Deferred = append(out.Deferred, in.RunScript(node.Content, in.pids.Next())...)
	}
}

// runInstaller announces a fresh PID, then hands the script to an installer
// window carrying the same PID.
func (in *Interpreter) runInstaller(out *Outcome, node *virtualfs.Node) {
	pid := in.pids.Next()
	logger.Debug(logger.AreaShell, "Installer %s scheduled as PID %d", node.Name, pid)

	out.Entries = append(out.Entries, Styled(StyleStatus, fmt.Sprintf("Preparing %s...", node.Name)))
	out.Deferred = append(out.Deferred,
		entryStep(in.timings.Installer, Styled(StyleSuccess, fmt.Sprintf("Installer started with PID %d", pid))),
		spawnStep(in.timings.Installer, desktop.InstallerLaunch{Script: node.Script(), PID: pid}),
	)
}

// runNavigation stages connection messages, then opens the browser on url.
func (in *Interpreter) runNavigation(out *Outcome, name, url string) {
	stages := []string{
		"Resolving " + hostOf(url) + "...",
		"Establishing secure connection...",
		"Authenticating visitor session...",
	}
	step := in.timings.NavigationStep

	out.Entries = append(out.Entries, Styled(StyleStatus, fmt.Sprintf("Executing %s...", name)))
	for i, stage := range stages {
		out.Deferred = append(out.Deferred, entryStep(step*time.Duration(i+1), Styled(StyleStatus, stage)))
	}
	final := step * time.Duration(len(stages)+1)
	out.Deferred = append(out.Deferred,
		entryStep(final, Styled(StyleSuccess, fmt.Sprintf("Opening %s (PID %d)", url, in.navigationPID))),
		spawnStep(final, desktop.BrowserLaunch{URL: url, PID: in.navigationPID}),
	)
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

// RunScript scans a script body line by line. Delays accumulate across sleep
// lines; spawns fire a spawn buffer after the delay in effect on their line.
// The result is sorted by delay, keeping script order for equal delays.
func (in *Interpreter) RunScript(body string, pid int) []Step {
	var (
		steps []Step
		delay time.Duration
	)
	lines := strings.Split(body, "\n")
	if in.maxScriptLines > 0 && len(lines) > in.maxScriptLines {
		logger.Warn(logger.AreaShell, "Script truncated from %d to %d lines", len(lines), in.maxScriptLines)
		lines = lines[:in.maxScriptLines]
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		directive, rest := splitDirective(line)

		switch directive {
		case "sleep":
			seconds, err := strconv.ParseFloat(rest, 64)
			if err != nil || seconds < 0 {
				steps = append(steps, entryStep(delay, Errorf("sleep: invalid time interval: %s", rest)))
				continue
			}
			delay += time.Duration(seconds * float64(time.Second))
		case "echo":
			text := strings.ReplaceAll(unquote(rest), PIDPlaceholder, strconv.Itoa(pid))
			steps = append(steps, entryStep(delay, Output(text)))
		case "firefox":
			steps = append(steps, spawnStep(delay+in.timings.SpawnBuffer, desktop.BrowserLaunch{URL: unquote(rest), PID: pid}))
		case "open":
			app := unquote(rest)
			kind, ok := AppAlias(app)
			if !ok {
				steps = append(steps, entryStep(delay, Errorf("open: unknown application: %s", app)))
				continue
			}
			steps = append(steps, spawnStep(delay+in.timings.SpawnBuffer, desktop.DefaultLaunch(kind, pid)))
		default:
			steps = append(steps, entryStep(delay, Errorf("command not found: %s", directive)))
		}
	}
	sortSteps(steps)
	return steps
}

func splitDirective(line string) (string, string) {
	directive, rest, _ := strings.Cut(line, " ")
	return directive, strings.TrimSpace(rest)
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
