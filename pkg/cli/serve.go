package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/antibyte/webdesk/pkg/apps"
	"github.com/antibyte/webdesk/pkg/auth"
	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/gateway"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/metrics"
	"github.com/antibyte/webdesk/pkg/pid"
	"github.com/antibyte/webdesk/pkg/resources"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/shell"
	tlsmanager "github.com/antibyte/webdesk/pkg/tls"
	"github.com/antibyte/webdesk/pkg/virtualfs"
	"github.com/antibyte/webdesk/web"

	"github.com/NYTimes/gziphandler"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the desktop over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// newEnv builds the read-only pieces every desktop shares.
func newEnv(bundle *content.Bundle) apps.Env {
	fs := virtualfs.New(bundle)
	return apps.Env{Bundle: bundle, FS: fs, Interp: shell.New(fs, bundle, pid.New())}
}

// desktopBuilder creates a desktop on the session loop it is handed.
func desktopBuilder(env apps.Env) resources.Builder {
	cfg := desktop.ConfigFromSettings()
	maxNotifications := configuration.GetInt("Desktop", "max_notifications", 20)
	openTerminal := configuration.GetBool("Desktop", "open_terminal_on_new", true)
	return func(sched scheduler.Scheduler) *desktop.Desktop {
		e := env
		e.Scheduler = sched
		return apps.NewDesktop(e, cfg, maxNotifications, openTerminal)
	}
}

// staticHandler serves [Server] static_dir when set, the embedded renderer
// otherwise.
func staticHandler() http.Handler {
	var files http.Handler
	if dir := configuration.GetString("Server", "static_dir", ""); dir != "" {
		logger.Info(logger.AreaGeneral, "Serving static files from %s", dir)
		files = http.FileServer(http.Dir(dir))
	} else {
		files = http.FileServer(http.FS(web.FS()))
	}
	if configuration.GetBool("Server", "enable_gzip", true) {
		return gziphandler.GzipHandler(files)
	}
	return files
}

// newMux registers every route. Each route is wrapped for request metrics.
func newMux(sessions *resources.SessionManager, gw *gateway.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(path string, h http.Handler) {
		mux.Handle(path, metrics.Middleware(path, h))
	}

	authHandlers := auth.NewHandlers(sessions)
	handle("/api/session", http.HandlerFunc(authHandlers.HandleCreateSession))
	handle("/api/session/validate", http.HandlerFunc(auth.HandleTokenValidation))
	handle("/api/session/logout", http.HandlerFunc(auth.HandleLogout))
	handle("/api/stats", auth.RequireGuestToken(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessions.GetSessionStats())
	}))
	handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/ws", gw.HandleWebSocket)

	if configuration.GetBool("Metrics", "enable_metrics", true) {
		mux.Handle(configuration.GetString("Metrics", "path", "/metrics"), metrics.Handler())
	}
	handle("/", staticHandler())
	return mux
}

func runServe(ctx context.Context, opts *Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bundle, err := loadBundle(opts)
	if err != nil {
		return err
	}
	env := newEnv(bundle)
	logger.Info(logger.AreaFileSystem, "Content bundle loaded for %s", bundle.Owner.Name)

	sessions := resources.NewSessionManager(desktopBuilder(env))
	defer sessions.Shutdown()
	sessions.StartPeriodicCleanup(ctx)

	tlsManager, err := tlsmanager.NewManager(tlsmanager.ConfigFromSettings())
	if err != nil {
		return fmt.Errorf("TLS manager initialization failed: %w", err)
	}

	mux := newMux(sessions, gateway.NewHandler(sessions))
	logger.Info(logger.AreaGeneral, "webdesk starting (TLS: %v)", tlsManager.Enabled())
	if err := tlsManager.Serve(ctx, mux); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info(logger.AreaGeneral, "webdesk stopped, closing %d desktops", sessions.Count())
	return nil
}
