// Package web holds the page shell and fragments compiled into the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html modules/*.html
var Content embed.FS

// ShellPath is the name of the shell page inside Content
const ShellPath = "index.html"

// Shell returns the page shell the fragments are mounted into
func Shell() string {
	data, err := fs.ReadFile(Content, ShellPath)
	if err != nil {
		panic("web: embedded shell missing: " + err.Error())
	}
	return string(data)
}
