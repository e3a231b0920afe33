package apps

import (
	"github.com/antibyte/webdesk/pkg/desktop"
	"github.com/antibyte/webdesk/pkg/logger"
	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"
)

// Files is a folder browser over the shared tree.
type Files struct {
	chrome
	fs      *virtualfs.VFS
	interp  *shell.Interpreter
	host    desktop.Host
	cwd     virtualfs.Path
	preview *Preview
}

// Preview is the file currently shown beside the listing.
type Preview struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// FileItem is one row of the listing.
type FileItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type FilesView struct {
	Kind    string     `json:"kind"`
	Path    string     `json:"path"`
	Items   []FileItem `json:"items"`
	Preview *Preview   `json:"preview,omitempty"`
}

func NewFiles(env Env, host desktop.Host, launch desktop.FilesLaunch) *Files {
	f := &Files{fs: env.FS, interp: env.Interp, host: host, cwd: env.FS.HomePath()}
	if launch.Path != "" {
		target := env.FS.ResolvePath(f.cwd, launch.Path)
		if node, ok := env.FS.GetNode(target); ok && node.IsDir() {
			f.cwd = target
		}
	}
	return f
}

func (f *Files) Title() string { return "Files - " + virtualfs.FormatPath(f.cwd) }

func (f *Files) Cwd() virtualfs.Path { return f.cwd.Clone() }

func (f *Files) Snapshot() any {
	view := FilesView{Kind: "files", Path: virtualfs.FormatPath(f.cwd), Preview: f.preview}
	if node, ok := f.fs.GetNode(f.cwd); ok {
		for _, child := range node.Children() {
			view.Items = append(view.Items, FileItem{Name: child.Name, Type: child.Type.String()})
		}
	}
	return view
}

// HandleInput supports "open" with a child name as Arg, and "up".
func (f *Files) HandleInput(in desktop.Input) error {
	if f.handleChrome(in) {
		return nil
	}
	switch in.Action {
	case "up":
		if len(f.cwd) > 0 {
			f.cwd = f.cwd[:len(f.cwd)-1].Clone()
		}
		f.preview = nil
	case "open":
		return f.open(in.Arg)
	default:
		return desktop.ErrUnsupportedInput
	}
	return nil
}

func (f *Files) open(name string) error {
	folder, ok := f.fs.GetNode(f.cwd)
	if !ok {
		return desktop.ErrUnsupportedInput
	}
	node, ok := folder.Child(name)
	if !ok {
		return desktop.ErrUnsupportedInput
	}
	switch node.Type {
	case virtualfs.Folder:
		f.cwd = append(f.cwd.Clone(), name)
		f.preview = nil
	case virtualfs.Shell:
		pid := f.interp.NextPID()
		logger.Info(logger.AreaFileSystem, "Running %s from the file browser as PID %d", name, pid)
		f.host.OpenApp(string(desktop.AppTerminal), desktop.TerminalLaunch{Script: node.Script(), PID: pid})
	default:
		f.preview = &Preview{Name: node.Name, Content: node.Content}
	}
	return nil
}

func (f *Files) Close() {}
