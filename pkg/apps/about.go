package apps

import (
	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/desktop"
)

// About shows the owner card.
type About struct {
	chrome
	owner content.Owner
}

func NewAbout(env Env) *About { return &About{owner: env.Bundle.Owner} }

func (a *About) Title() string { return "About " + a.owner.Name }

type AboutView struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	GitHub string `json:"github"`
}

func (a *About) Snapshot() any {
	return AboutView{
		Kind:   "about",
		Name:   a.owner.Name,
		Handle: a.owner.Handle,
		Role:   a.owner.Role,
		Email:  a.owner.Email,
		GitHub: a.owner.GitHub,
	}
}

func (a *About) HandleInput(in desktop.Input) error {
	if a.handleChrome(in) {
		return nil
	}
	return desktop.ErrUnsupportedInput
}

func (a *About) Close() {}
