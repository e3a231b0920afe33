package shell

import (
	"strings"

	"github.com/antibyte/webdesk/pkg/virtualfs"
)

// cmdPwd prints the formatted working directory.
func (in *Interpreter) cmdPwd(out *Outcome) {
	out.Entries = append(out.Entries, Output(virtualfs.FormatPath(out.Cwd)))
}

// cmdLs lists a folder in insertion order, folders suffixed with "/".
func (in *Interpreter) cmdLs(out *Outcome, args []string) {
	target := out.Cwd
	if len(args) > 0 {
		target = in.fs.ResolvePath(out.Cwd, args[0])
	}
	node, ok := in.fs.GetNode(target)
	if !ok {
		out.Entries = append(out.Entries, Errorf("ls: no such file or directory: %s", args[0]))
		return
	}
	if !node.IsDir() {
		out.Entries = append(out.Entries, Output(node.Name))
		return
	}
	if listing := FormatListing(node); listing != "" {
		out.Entries = append(out.Entries, Output(listing))
	}
}

// FormatListing joins a folder's children with two spaces.
func FormatListing(folder *virtualfs.Node) string {
	children := folder.Children()
	names := make([]string, 0, len(children))
	for _, child := range children {
		name := child.Name
		if child.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return strings.Join(names, "  ")
}

// cmdCd changes directory. Failure leaves cwd unchanged and adds exactly one
// error entry.
func (in *Interpreter) cmdCd(out *Outcome, args []string) {
	if len(args) == 0 {
		out.Cwd = in.fs.HomePath()
		return
	}
	target := in.fs.ResolvePath(out.Cwd, args[0])
	node, ok := in.fs.GetNode(target)
	if !ok || !node.IsDir() {
		out.Entries = append(out.Entries, Errorf("cd: no such file or directory: %s", args[0]))
		return
	}
	out.Cwd = target
}

// cmdTree renders the working directory recursively.
func (in *Interpreter) cmdTree(out *Outcome) {
	node, ok := in.fs.GetNode(out.Cwd)
	if !ok {
		out.Entries = append(out.Entries, Errorf("tree: no such file or directory: %s", virtualfs.FormatPath(out.Cwd)))
		return
	}
	out.Entries = append(out.Entries, Styled(StyleBlock, strings.Join(RenderTree(node), "\n")))
}

// RenderTree draws node's subtree with box-drawing connectors. The first
// line is ".".
func RenderTree(node *virtualfs.Node) []string {
	lines := []string{"."}
	var walk func(n *virtualfs.Node, prefix string)
	walk = func(n *virtualfs.Node, prefix string) {
		children := n.Children()
		for i, child := range children {
			last := i == len(children)-1
			connector, extension := "├── ", "│   "
			if last {
				connector, extension = "└── ", "    "
			}
			lines = append(lines, prefix+connector+child.Name)
			if child.IsDir() {
				walk(child, prefix+extension)
			}
		}
	}
	walk(node, "")
	return lines
}

// cmdCat prints a file verbatim.
func (in *Interpreter) cmdCat(out *Outcome, args []string) {
	if len(args) == 0 {
		out.Entries = append(out.Entries, Errorf("usage: cat <filename>"))
		return
	}
	node, ok := in.fs.GetNode(in.fs.ResolvePath(out.Cwd, args[0]))
	if !ok {
		out.Entries = append(out.Entries, Errorf("cat: no such file or directory: %s", args[0]))
		return
	}
	if node.IsDir() {
		out.Entries = append(out.Entries, Errorf("cat: %s: is a directory", args[0]))
		return
	}
	out.Entries = append(out.Entries, Styled(StyleBlock, strings.TrimRight(node.Content, "\n")))
}
