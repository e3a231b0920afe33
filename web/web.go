// Package web embeds the browser renderer. It draws whatever the server sends
// and forwards input; no desktop state lives in the page.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// FS returns the renderer files rooted at index.html.
func FS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
