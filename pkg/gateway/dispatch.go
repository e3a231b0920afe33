package gateway

import (
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/shared"

	"github.com/pkg/errors"
)

// dispatch applies one request to the desktop. It must run on the session
// loop.
func dispatch(d *desktop.Desktop, req shared.Request) error {
	switch req.Type {
	case shared.RequestViewport:
		if req.Width <= 0 || req.Height <= 0 {
			return errors.Errorf("invalid viewport %dx%d", req.Width, req.Height)
		}
		d.SetViewport(req.Width, req.Height)

	case shared.RequestOpen:
		params, err := desktop.DecodeLaunch(req.App, req.Params)
		if err != nil {
			return errors.Wrapf(err, "open %s", req.App)
		}
		if d.OpenApp(req.App, params) == "" {
			return errors.New("window limit reached")
		}

	case shared.RequestClose:
		if !d.Close(req.WindowID) {
			return windowNotFound(req.WindowID)
		}

	case shared.RequestMinimize:
		if !d.SetMinimized(req.WindowID, req.Minimized) {
			return windowNotFound(req.WindowID)
		}

	case shared.RequestMaximize:
		if !d.ToggleMaximize(req.WindowID) {
			return windowNotFound(req.WindowID)
		}

	case shared.RequestFocus:
		if !d.Focus(req.WindowID) {
			return windowNotFound(req.WindowID)
		}

	case shared.RequestPointerDown:
		d.PointerDown(req.WindowID, req.X, req.Y)

	case shared.RequestPointerMove:
		d.PointerMove(req.X, req.Y)

	case shared.RequestPointerUp:
		d.PointerUp()

	case shared.RequestKey, shared.RequestInput:
		if err := d.HandleInput(req.WindowID, req.Input()); err != nil {
			return errors.Wrapf(err, "%s for window %s", req.Type, req.WindowID)
		}

	case shared.RequestDismiss:
		if !d.Notifications().Dismiss(req.ID) {
			return errors.Errorf("notification %s not found", req.ID)
		}

	case shared.RequestKeepalive:

	default:
		return errors.Errorf("unknown request type %q", req.Type)
	}
	return nil
}

func windowNotFound(id string) error {
	return errors.Errorf("window %s not found", id)
}
