package apps

import (
	"strconv"

	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
)

// Mail is a static inbox.
type Mail struct {
	chrome
	inbox    []content.Mail
	selected int
}

func NewMail(env Env) *Mail {
	return &Mail{inbox: env.Bundle.Mail}
}

func (m *Mail) Title() string { return "Inbox - Thunderbird" }

type MailView struct {
	Kind     string         `json:"kind"`
	Inbox    []content.Mail `json:"inbox"`
	Selected int            `json:"selected"`
}

func (m *Mail) Snapshot() any {
	return MailView{Kind: "mail", Inbox: m.inbox, Selected: m.selected}
}

// HandleInput supports "select" with the message index as Arg.
func (m *Mail) HandleInput(in desktop.Input) error {
	if m.handleChrome(in) {
		return nil
	}
	if in.Action != "select" {
		return desktop.ErrUnsupportedInput
	}
	i, err := strconv.Atoi(in.Arg)
	if err != nil || i < 0 || i >= len(m.inbox) {
		return desktop.ErrUnsupportedInput
	}
	m.selected = i
	return nil
}

func (m *Mail) Close() {}
