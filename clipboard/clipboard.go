// Package clipboard wraps the system clipboard for image and text payloads.
package clipboard

import (
	"golang.design/x/clipboard"
)

// Init must succeed once before any write. It fails when no clipboard is
// available (e.g. headless X session).
func Init() error {
	return clipboard.Init()
}

// WriteImage places PNG bytes on the clipboard.
func WriteImage(png []byte) {
	clipboard.Write(clipboard.FmtImage, png)
}

// WriteText places plain text on the clipboard.
func WriteText(text string) {
	clipboard.Write(clipboard.FmtText, []byte(text))
}
