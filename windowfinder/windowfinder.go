// Package windowfinder enumerates on-screen windows and resolves their
// screen-space bounds. The host-specific mechanics live behind Directory so
// the capture path never depends on one platform.
package windowfinder

import (
	"errors"
	"image"
)

// ErrWindowNotFound is returned when no on-screen window matches a title.
var ErrWindowNotFound = errors.New("window not found")

// Directory lists windows and looks up their bounding boxes.
type Directory interface {
	// Titles returns the titles of all visible windows, empty titles omitted.
	Titles() ([]string, error)
	// Bounds returns the screen-space bounding box of the first window
	// matching title.
	Bounds(title string) (image.Rectangle, error)
}

// System returns the Directory implementation for the host platform.
func System() Directory {
	return systemDirectory()
}
