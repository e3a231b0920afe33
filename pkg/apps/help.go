package apps

import (
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
)

// Help shows the bundled help topics.
type Help struct {
	chrome
	topics []content.HelpTopic
	active int
}

func NewHelp(env Env, launch desktop.HelpLaunch) *Help {
	h := &Help{topics: env.Bundle.Help}
	h.selectTopic(launch.Topic)
	return h
}

func (h *Help) selectTopic(id string) bool {
	for i, t := range h.topics {
		if t.ID == id {
			h.active = i
			return true
		}
	}
	return false
}

func (h *Help) Title() string {
	if len(h.topics) == 0 {
		return "Help"
	}
	return "Help - " + h.topics[h.active].Title
}

type HelpView struct {
	Kind   string              `json:"kind"`
	Topics []content.HelpTopic `json:"topics"`
	Active string              `json:"active,omitempty"`
}

func (h *Help) Snapshot() any {
	view := HelpView{Kind: "help", Topics: h.topics}
	if len(h.topics) > 0 {
		view.Active = h.topics[h.active].ID
	}
	return view
}

func (h *Help) HandleInput(in desktop.Input) error {
	if h.handleChrome(in) {
		return nil
	}
	if in.Action == "topic" && h.selectTopic(in.Arg) {
		return nil
	}
	return desktop.ErrUnsupportedInput
}

func (h *Help) Close() {}
