// Package content holds the static data bundle shipped inside the binary:
// the filesystem tree, the canned command table, help topics, mail and
// browser pages. It is parsed once and shared read-only.
package content

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var bundled []byte

// Node types as written in the bundle.
const (
	TypeFolder = "folder"
	TypeFile   = "file"
	TypeShell  = "shell"
)

// Owner describes the person the portfolio belongs to.
type Owner struct {
	Name   string `yaml:"name"`
	Handle string `yaml:"handle"`
	Role   string `yaml:"role"`
	Email  string `yaml:"email"`
	GitHub string `yaml:"github"`
}

// Entry is one filesystem node in the bundle.
type Entry struct {
	Type     string   `yaml:"type"`
	Content  string   `yaml:"content"`
	Internal string   `yaml:"internal"`
	Children Children `yaml:"children"`
}

// NamedEntry pairs an entry with its name inside the parent folder.
type NamedEntry struct {
	Name  string
	Entry Entry
}

// Children keeps folder entries in the order they appear in the document.
// A plain map would lose that order, and ls/tree must preserve it.
type Children []NamedEntry

// UnmarshalYAML decodes a mapping node pair by pair.
func (c *Children) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: children must be a mapping", node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	out := make(Children, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return fmt.Errorf("line %d: duplicate entry %q", node.Content[i].Line, name)
		}
		seen[name] = true

		var entry Entry
		if err := node.Content[i+1].Decode(&entry); err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}
		out = append(out, NamedEntry{Name: name, Entry: entry})
	}
	*c = out
	return nil
}

// Command is one row of the canned command table.
type Command struct {
	Name   string `yaml:"name"`
	Output string `yaml:"output"`
}

// Scripts names the executables that get special launch behaviour.
type Scripts struct {
	Installers []string          `yaml:"installers"`
	Navigation map[string]string `yaml:"navigation"`
}

type HelpTopic struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type Mail struct {
	From    string `yaml:"from"`
	Subject string `yaml:"subject"`
	Date    string `yaml:"date"`
	Body    string `yaml:"body"`
}

type Bookmark struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

type Page struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type Browser struct {
	Home      string     `yaml:"home"`
	Bookmarks []Bookmark `yaml:"bookmarks"`
	Pages     []Page     `yaml:"pages"`
}

// Bundle is the whole static data set.
type Bundle struct {
	Owner      Owner       `yaml:"owner"`
	Home       []string    `yaml:"home"`
	Commands   []Command   `yaml:"commands"`
	Scripts    Scripts     `yaml:"scripts"`
	Filesystem Children    `yaml:"filesystem"`
	Help       []HelpTopic `yaml:"help"`
	Mail       []Mail      `yaml:"mail"`
	Browser    Browser     `yaml:"browser"`
}

// Parse decodes and validates a bundle document.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	return &b, nil
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default returns the embedded bundle, parsed on first use.
func Default() (*Bundle, error) {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = Parse(bundled)
	})
	return defaultBundle, defaultErr
}

// Command looks up a canned command by name.
func (b *Bundle) Command(name string) (Command, bool) {
	for _, c := range b.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// IsInstaller reports whether a script file name launches an installer window.
func (b *Bundle) IsInstaller(name string) bool {
	for _, n := range b.Scripts.Installers {
		if n == name {
			return true
		}
	}
	return false
}

func (b *Bundle) validate() error {
	if len(b.Home) == 0 {
		return fmt.Errorf("home path must not be empty")
	}
	seen := make(map[string]bool, len(b.Commands))
	for _, c := range b.Commands {
		if c.Name == "" {
			return fmt.Errorf("command without name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate command %q", c.Name)
		}
		seen[c.Name] = true
	}
	return validateChildren("", b.Filesystem)
}

func validateChildren(parent string, children Children) error {
	for _, child := range children {
		path := parent + "/" + child.Name
		switch child.Entry.Type {
		case TypeFolder:
			if err := validateChildren(path, child.Entry.Children); err != nil {
				return err
			}
		case TypeFile, TypeShell:
			if len(child.Entry.Children) > 0 {
				return fmt.Errorf("%s: only folders can have children", path)
			}
			if child.Entry.Internal != "" && child.Entry.Type != TypeShell {
				return fmt.Errorf("%s: internal scripts are only allowed on shell nodes", path)
			}
		default:
			return fmt.Errorf("%s: unknown node type %q", path, child.Entry.Type)
		}
	}
	return nil
}
