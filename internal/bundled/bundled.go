// Package bundled holds the documentation compiled into the docview binary.
package bundled

import (
	"embed"
	"io/fs"
)

//go:embed docs
var docs embed.FS

// FS returns the bundled documents rooted at the docs directory.
func FS() fs.FS {
	sub, err := fs.Sub(docs, "docs")
	if err != nil {
		// Sub only fails on an invalid path literal.
		panic(err)
	}
	return sub
}
