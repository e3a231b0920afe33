package virtualfs

import (
	"strings"

	"github.com/antibyte/webdesk/pkg/content"
	"github.com/antibyte/webdesk/pkg/logger"
)

// NodeType determines which commands may act on a node.
type NodeType int

const (
	Folder NodeType = iota
	File
	Shell
)

func (t NodeType) String() string {
	switch t {
	case Folder:
		return "folder"
	case File:
		return "file"
	case Shell:
		return "shell"
	default:
		return "unknown"
	}
}

// Node is a folder, plain file or executable script. Nodes are never
// modified after the tree is built.
type Node struct {
	Name           string
	Type           NodeType
	Content        string
	InternalScript string

	children []*Node
	index    map[string]*Node
}

// Children returns the child nodes in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Child looks up a direct child by name.
func (n *Node) Child(name string) (*Node, bool) {
	if n.index == nil {
		return nil, false
	}
	child, ok := n.index[name]
	return child, ok
}

// IsDir reports whether the node is a folder.
func (n *Node) IsDir() bool { return n.Type == Folder }

// Script returns the body a spawned child process should run: the internal
// script when present, the visible content otherwise.
func (n *Node) Script() string {
	if n.InternalScript != "" {
		return n.InternalScript
	}
	return n.Content
}

// Path is a list of segments, always absolute from the root. The root
// itself is the empty path.
type Path []string

// Clone returns an independent copy.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal compares two paths segment by segment.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the display form, see FormatPath.
func (p Path) String() string { return FormatPath(p) }

// VFS is the immutable filesystem tree shared by every terminal session.
type VFS struct {
	root *Node
	home Path
}

// New builds the tree from a content bundle.
func New(bundle *content.Bundle) *VFS {
	root := &Node{Name: "/", Type: Folder}
	attach(root, bundle.Filesystem)

	vfs := &VFS{root: root, home: Path(bundle.Home).Clone()}
	if node, ok := vfs.GetNode(vfs.home); !ok || !node.IsDir() {
		logger.Warn(logger.AreaFileSystem, "Home path %s is not a folder in the bundle, falling back to /", FormatPath(vfs.home))
		vfs.home = Path{}
	}
	logger.Info(logger.AreaFileSystem, "Virtual filesystem built: %d nodes, home %s", countNodes(root), FormatPath(vfs.home))
	return vfs
}

func attach(parent *Node, children content.Children) {
	parent.children = make([]*Node, 0, len(children))
	parent.index = make(map[string]*Node, len(children))
	for _, c := range children {
		node := &Node{
			Name:           c.Name,
			Type:           nodeType(c.Entry.Type),
			Content:        c.Entry.Content,
			InternalScript: c.Entry.Internal,
		}
		if node.Type == Folder {
			attach(node, c.Entry.Children)
		}
		parent.children = append(parent.children, node)
		parent.index[c.Name] = node
	}
}

func nodeType(raw string) NodeType {
	switch raw {
	case content.TypeShell:
		return Shell
	case content.TypeFile:
		return File
	default:
		return Folder
	}
}

func countNodes(n *Node) int {
	count := 1
	for _, c := range n.children {
		count += countNodes(c)
	}
	return count
}

// Root returns the root folder.
func (vfs *VFS) Root() *Node { return vfs.root }

// HomePath returns a copy of the home directory path.
func (vfs *VFS) HomePath() Path { return vfs.home.Clone() }

// GetNode walks the tree. A missing segment, or a segment below a
// non-folder, yields (nil, false).
func (vfs *VFS) GetNode(path Path) (*Node, bool) {
	current := vfs.root
	for _, segment := range path {
		if !current.IsDir() {
			return nil, false
		}
		child, ok := current.Child(segment)
		if !ok {
			return nil, false
		}
		current = child
	}
	return current, true
}

// ResolvePath builds the path a target refers to, relative to current.
// Existence is not checked; callers verify the result with GetNode.
//
//	""  or "~"  home
//	".."        parent, clamped at the root
//	"."         current
//	"a/b"       each segment applied in turn
//	"/a"        restart from the root
func (vfs *VFS) ResolvePath(current Path, target string) Path {
	if target == "" || target == "~" {
		return vfs.HomePath()
	}

	out := current.Clone()
	switch {
	case strings.HasPrefix(target, "/"):
		out = Path{}
	case strings.HasPrefix(target, "~/"):
		out = vfs.HomePath()
		target = strings.TrimPrefix(target, "~")
	}

	for _, segment := range strings.Split(target, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, segment)
		}
	}
	return out
}

// FormatPath renders the absolute display form, "/" for the root.
func FormatPath(path Path) string {
	return "/" + strings.Join(path, "/")
}

// Walk visits every node below start depth-first in insertion order.
func Walk(start *Node, fn func(path Path, node *Node)) {
	var visit func(p Path, n *Node)
	visit = func(p Path, n *Node) {
		fn(p, n)
		for _, c := range n.children {
			visit(append(p.Clone(), c.Name), c)
		}
	}
	visit(Path{}, start)
}
