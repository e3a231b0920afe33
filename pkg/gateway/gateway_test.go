package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/webdesk/pkg/apps"
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/pid"
	"github.com/antibyte/webdesk/pkg/resources"
	"github.com/antibyte/webdesk/pkg/scheduler"
	"github.com/antibyte/webdesk/pkg/shared"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"

	"github.com/gorilla/websocket"
)

func testEnv(t *testing.T) apps.Env {
	t.Helper()
	bundle, err := content.Default()
	if err != nil {
		t.Fatalf("content.Default: %v", err)
	}
	fs := virtualfs.New(bundle)
	return apps.Env{Bundle: bundle, FS: fs, Interp: shell.New(fs, bundle, pid.NewSeeded(7))}
}

func newTestServer(t *testing.T) (*httptest.Server, *resources.SessionManager) {
	t.Helper()
	env := testEnv(t)
	sessions := resources.NewSessionManager(func(sched scheduler.Scheduler) *desktop.Desktop {
		e := env
		e.Scheduler = sched
		return apps.NewDesktop(e, desktop.ConfigFromSettings(), 10, true)
	})
	h := NewHandler(sessions)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		sessions.Shutdown()
	})
	return srv, sessions
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	header := http.Header{"Origin": []string{srv.URL}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(shared.Message) bool) shared.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func isType(mt shared.MessageType) func(shared.Message) bool {
	return func(m shared.Message) bool { return m.Type == mt }
}

func windowCount(n int) func(shared.Message) bool {
	return func(m shared.Message) bool {
		return m.Type == shared.MessageTypeSnapshot && m.Desktop != nil && len(m.Desktop.Windows) == n
	}
}

func send(t *testing.T, conn *websocket.Conn, req shared.Request) {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestConnectSendsSessionThenSnapshot(t *testing.T) {
	srv, sessions := newTestServer(t)
	conn := dial(t, srv, "")

	hello := readUntil(t, conn, func(shared.Message) bool { return true })
	if hello.Type != shared.MessageTypeSession || hello.SessionID == "" || hello.Token == "" {
		t.Fatalf("first message = %+v, want session with id and token", hello)
	}
	if _, ok := sessions.Get(hello.SessionID); !ok {
		t.Fatalf("session %s not registered", hello.SessionID)
	}

	snap := readUntil(t, conn, isType(shared.MessageTypeSnapshot))
	if len(snap.Desktop.Windows) != 1 || snap.Desktop.Windows[0].Kind != desktop.AppTerminal {
		t.Errorf("initial windows = %+v, want one terminal", snap.Desktop.Windows)
	}
}

func TestRequestsDriveTheDesktop(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "")
	readUntil(t, conn, windowCount(1))

	send(t, conn, shared.Request{Type: shared.RequestOpen, App: "About"})
	snap := readUntil(t, conn, windowCount(2))

	var about desktop.WindowSnapshot
	for _, w := range snap.Desktop.Windows {
		if w.Kind == desktop.AppAbout {
			about = w
		}
	}
	if !about.Focused {
		t.Fatalf("opened window not focused: %+v", about)
	}

	send(t, conn, shared.Request{Type: shared.RequestClose, WindowID: about.ID})
	readUntil(t, conn, windowCount(1))

	send(t, conn, shared.Request{Type: shared.RequestClose, WindowID: "missing"})
	errMsg := readUntil(t, conn, isType(shared.MessageTypeError))
	if !strings.Contains(errMsg.Content, "missing") {
		t.Errorf("error = %q, want mention of the window id", errMsg.Content)
	}
}

func TestInvalidFramesAreRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "")
	readUntil(t, conn, isType(shared.MessageTypeSnapshot))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, isType(shared.MessageTypeError))
	if msg.Content != "Invalid request format" {
		t.Errorf("error = %q", msg.Content)
	}

	send(t, conn, shared.Request{Type: "teleport"})
	msg = readUntil(t, conn, isType(shared.MessageTypeError))
	if !strings.Contains(msg.Content, "teleport") {
		t.Errorf("error = %q, want unknown type", msg.Content)
	}
}

func TestTokenReattachesSession(t *testing.T) {
	srv, sessions := newTestServer(t)
	first := dial(t, srv, "")
	hello := readUntil(t, first, isType(shared.MessageTypeSession))
	readUntil(t, first, windowCount(1))
	send(t, first, shared.Request{Type: shared.RequestOpen, App: "Help"})
	readUntil(t, first, windowCount(2))

	second := dial(t, srv, "?token="+hello.Token)
	again := readUntil(t, second, isType(shared.MessageTypeSession))
	if again.SessionID != hello.SessionID {
		t.Fatalf("reconnect got session %s, want %s", again.SessionID, hello.SessionID)
	}
	readUntil(t, second, windowCount(2))
	if sessions.Count() != 1 {
		t.Errorf("sessions = %d, want 1", sessions.Count())
	}

	// The older connection is closed once the new one takes over.
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
}

func TestSessionLimitRefusesUpgrade(t *testing.T) {
	srv, sessions := newTestServer(t)
	for i := 0; i < 5; i++ {
		if _, err := sessions.Create("127.0.0.1"); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{srv.URL}})
	if err == nil {
		t.Fatal("dial succeeded past the session limit")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("response = %v, want 429", resp)
	}
}

func TestForeignOriginRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://evil.example"}})
	if err == nil {
		t.Fatal("dial from foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}
