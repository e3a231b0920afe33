package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/session"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newShellCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run the simulated terminal on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadBundle(opts)
			if err != nil {
				return err
			}
			env := newEnv(bundle)
			return runShell(cmd.Context(), env.Interp, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

var (
	promptColor = color.New(color.FgGreen, color.Bold)
	errorColor  = color.New(color.FgRed)
	statusColor = color.New(color.FgCyan)
	windowColor = color.New(color.FgYellow)
)

// lockedWriter serialises writes from the loop goroutine (deferred script
// output) and the reading goroutine (prompts).
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// printer writes new scrollback entries to out.
type printer struct {
	out     io.Writer
	printed int
}

func (p *printer) flush(lines []shell.Entry) {
	if len(lines) < p.printed {
		p.printed = 0
	}
	for _, e := range lines[p.printed:] {
		switch {
		case e.Kind == shell.KindCommand:
			// Already visible as typed input.
		case e.Kind == shell.KindError:
			errorColor.Fprintln(p.out, e.Text)
		case e.Style == shell.StyleStatus || e.Style == shell.StyleSuccess:
			statusColor.Fprintln(p.out, e.Text)
		default:
			fmt.Fprintln(p.out, e.Text)
		}
	}
	p.printed = len(lines)
}

// consoleOpener reports spawned windows instead of opening them.
type consoleOpener struct {
	out io.Writer
}

func (o consoleOpener) OpenApp(kind string, params desktop.LaunchParams) string {
	detail := ""
	switch p := params.(type) {
	case desktop.BrowserLaunch:
		detail = " " + p.URL
	case desktop.TerminalLaunch:
		if p.PID != 0 {
			detail = fmt.Sprintf(" (PID %d)", p.PID)
		}
	case desktop.InstallerLaunch:
		detail = fmt.Sprintf(" (PID %d)", p.PID)
	}
	windowColor.Fprintf(o.out, "[window] %s%s\n", kind, detail)
	return ""
}

// runShell drives one terminal session from in until EOF or "exit". The
// session lives on a real loop, so deferred output arrives with its delays.
func runShell(ctx context.Context, interp *shell.Interpreter, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out = &lockedWriter{w: out}
	loop := scheduler.NewLoop(64)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		loop.Run(ctx)
	}()
	defer func() {
		loop.Stop()
		<-stopped
	}()

	p := &printer{out: out}
	changed := make(chan struct{}, 1)
	var s *session.Session
	loop.Call(func() {
		s = session.New(interp, loop, consoleOpener{out: out})
		s.OnChange(func() {
			p.flush(s.Scrollback())
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		s.Start("", 0)
		p.flush(s.Scrollback())
	})
	defer loop.Call(s.Close)

	scanner := bufio.NewScanner(in)
	for {
		loop.Call(func() {
			promptColor.Fprintf(out, "%s$ ", virtualfs.FormatPath(s.Cwd()))
		})
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "exit" {
			return nil
		}

		busy := true
		loop.Call(func() {
			s.SetInput(line)
			s.Submit()
			p.flush(s.Scrollback())
			busy = s.Processing()
		})
		for busy {
			select {
			case <-changed:
			case <-ctx.Done():
				return ctx.Err()
			}
			loop.Call(func() { busy = s.Processing() })
		}
	}
}
