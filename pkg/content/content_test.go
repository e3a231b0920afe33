package content

import (
	"strings"
	"testing"
)

func TestDefaultBundleParses(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("embedded bundle failed to parse: %v", err)
	}
	if len(b.Home) != 2 || b.Home[0] != "home" {
		t.Errorf("unexpected home path %v", b.Home)
	}
	for _, name := range []string{"help", "about", "experience", "skills", "projects", "contact", "whoami"} {
		if _, ok := b.Command(name); !ok {
			t.Errorf("canned command %q missing", name)
		}
	}
	if !b.IsInstaller("install.sh") {
		t.Error("install.sh should be an installer script")
	}
	if b.Scripts.Navigation["portfolio.sh"] == "" {
		t.Error("portfolio.sh should map to a navigation target")
	}
}

func TestChildrenKeepDocumentOrder(t *testing.T) {
	doc := `
home: [h]
filesystem:
  zeta: {type: file, content: z}
  alpha: {type: file, content: a}
  mid:
    type: folder
    children:
      b: {type: file}
      a: {type: file}
`
	b, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var names []string
	for _, c := range b.Filesystem {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "zeta,alpha,mid" {
		t.Errorf("root order = %s", got)
	}
	nested := b.Filesystem[2].Entry.Children
	if nested[0].Name != "b" || nested[1].Name != "a" {
		t.Errorf("nested order not preserved: %+v", nested)
	}
}

func TestParseRejectsInvalidBundles(t *testing.T) {
	cases := map[string]string{
		"no home":        "filesystem: {}\n",
		"bad type":       "home: [h]\nfilesystem:\n  x: {type: socket}\n",
		"file children":  "home: [h]\nfilesystem:\n  x:\n    type: file\n    children:\n      y: {type: file}\n",
		"internal file":  "home: [h]\nfilesystem:\n  x: {type: file, internal: echo}\n",
		"duplicate cmd":  "home: [h]\ncommands:\n  - name: a\n  - name: a\n",
		"children shape": "home: [h]\nfilesystem: [1, 2]\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
