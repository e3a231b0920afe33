package desktop

import (
	"errors"
	"fmt"
)

// Controls is what a window hands to its content. Content never touches the
// window list directly; it asks through these calls.
type Controls interface {
	Close()
	Minimize()
	ToggleMaximize()
	IsMaximized() bool
}

// Input is an app-specific interaction forwarded from the client. Key carries
// terminal key presses; Action/Arg carry everything else ("navigate", url).
type Input struct {
	Key    string `json:"key,omitempty"`
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
	Arg    string `json:"arg,omitempty"`
}

// ErrUnsupportedInput is returned for inputs a content type does not handle.
var ErrUnsupportedInput = errors.New("unsupported input")

// Content is hosted inside a window. Every app implements it.
type Content interface {
	Title() string
	// Bind is called once, before the window is shown.
	Bind(Controls)
	// Snapshot returns the renderable state. It must be JSON-encodable.
	Snapshot() any
	HandleInput(Input) error
	// Close releases timers. It is called exactly once when the window closes.
	Close()
}

// Host is the desktop as seen by content factories.
type Host interface {
	OpenApp(kind string, params LaunchParams) string
	Notify(title, message string)
}

// Factory builds the content for one app kind.
type Factory func(host Host, params LaunchParams) Content

// Placeholder stands in for kinds the desktop cannot host.
type Placeholder struct {
	requested string
	controls  Controls
}

func NewPlaceholder(requested string) *Placeholder {
	return &Placeholder{requested: requested}
}

func (p *Placeholder) Title() string { return "Not found" }

func (p *Placeholder) Bind(c Controls) { p.controls = c }

// PlaceholderView is the placeholder's snapshot.
type PlaceholderView struct {
	Kind      string `json:"kind"`
	Requested string `json:"requested"`
	Message   string `json:"message"`
}

func (p *Placeholder) Snapshot() any {
	return PlaceholderView{
		Kind:      "placeholder",
		Requested: p.requested,
		Message:   fmt.Sprintf("content not found: %s", p.requested),
	}
}

func (p *Placeholder) HandleInput(in Input) error {
	if in.Action == "close" && p.controls != nil {
		p.controls.Close()
		return nil
	}
	return ErrUnsupportedInput
}

func (p *Placeholder) Close() {}
