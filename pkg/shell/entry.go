package shell

import (
	"fmt"
	"time"

	"github.com/antibyte/webdesk/pkg/desktop"
)

// EntryKind distinguishes scrollback lines.
type EntryKind string

const (
	KindCommand EntryKind = "command"
	KindOutput  EntryKind = "output"
	KindError   EntryKind = "error"
)

// Styles the renderer knows about. Plain output carries no style.
const (
	StyleStatus  = "status"
	StyleSuccess = "success"
	StyleBlock   = "block"
)

// Entry is one scrollback line. Cwd is only set on command echoes.
type Entry struct {
	Kind  EntryKind `json:"kind"`
	Text  string    `json:"text"`
	Cwd   string    `json:"cwd,omitempty"`
	Style string    `json:"style,omitempty"`
}

// CommandEntry echoes a submitted line together with the prompt path.
func CommandEntry(text, cwd string) Entry {
	return Entry{Kind: KindCommand, Text: text, Cwd: cwd}
}

func Output(text string) Entry { return Entry{Kind: KindOutput, Text: text} }

func Styled(style, text string) Entry { return Entry{Kind: KindOutput, Text: text, Style: style} }

func Errorf(format string, args ...interface{}) Entry {
	return Entry{Kind: KindError, Text: fmt.Sprintf(format, args...)}
}

// SpawnRequest asks the desktop for a new window.
type SpawnRequest struct {
	Kind   desktop.AppKind
	Launch desktop.LaunchParams
}

// Step is one delayed effect: an entry, a spawn, or both. Delay is measured
// from the moment the outcome is applied.
type Step struct {
	Delay time.Duration
	Entry *Entry
	Spawn *SpawnRequest
}

func entryStep(delay time.Duration, e Entry) Step {
	return Step{Delay: delay, Entry: &e}
}

func spawnStep(delay time.Duration, params desktop.LaunchParams) Step {
	return Step{Delay: delay, Spawn: &SpawnRequest{Kind: params.Kind(), Launch: params}}
}

// Category classifies what Execute did with a line.
type Category string

const (
	CategoryEmpty   Category = "empty"
	CategoryBuiltin Category = "builtin"
	CategoryScript  Category = "script"
	CategoryCanned  Category = "canned"
	CategoryUnknown Category = "unknown"
)
