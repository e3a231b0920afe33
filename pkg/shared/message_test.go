package shared

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/antibyte/webdesk/pkg/desktop"
)

func TestRequestDecodes(t *testing.T) {
	raw := `{"type":"open","app":"Firefox","params":{"url":"portfolio://home","pid":1337}}`
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatal(err)
	}
	if req.Type != RequestOpen || req.App != "Firefox" {
		t.Fatalf("decoded %+v", req)
	}
	params, err := desktop.DecodeLaunch(req.App, req.Params)
	if err != nil {
		t.Fatal(err)
	}
	launch, ok := params.(desktop.BrowserLaunch)
	if !ok || launch.PID != 1337 || launch.URL != "portfolio://home" {
		t.Errorf("launch = %#v", params)
	}
}

func TestRequestInputArg(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{Request{Action: "navigate", URL: "example.com"}, "example.com"},
		{Request{Action: "selecttab", Tab: "t1"}, "t1"},
		{Request{Action: "select", Arg: "2"}, "2"},
		{Request{Action: "submit", Text: "ls"}, ""},
	}
	for _, tt := range tests {
		in := tt.req.Input()
		if in.Arg != tt.want {
			t.Errorf("%s: Arg = %q, want %q", tt.req.Action, in.Arg, tt.want)
		}
		if in.Action != tt.req.Action || in.Text != tt.req.Text {
			t.Errorf("%s: input = %+v", tt.req.Action, in)
		}
	}
}

func TestMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(ErrorMessage("window not found"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if got != `{"type":"error","content":"window not found"}` {
		t.Errorf("error message = %s", got)
	}

	data, err = json.Marshal(SnapshotMessage(desktop.Snapshot{ID: "d1"}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"desktop":{`) {
		t.Errorf("snapshot message = %s", data)
	}
}
