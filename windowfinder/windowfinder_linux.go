//go:build linux

package windowfinder

import (
	"fmt"
	"image"
	"log"
	"os/exec"
	"strconv"
	"strings"
)

// x11Directory shells out to xwininfo, which is present on any X11 desktop.
type x11Directory struct{}

func systemDirectory() Directory { return x11Directory{} }

func (x11Directory) Titles() ([]string, error) {
	out, err := exec.Command("xwininfo", "-root", "-tree").Output()
	if err != nil {
		return nil, fmt.Errorf("xwininfo failed: %w", err)
	}
	return parseTreeTitles(string(out)), nil
}

func (x11Directory) Bounds(title string) (image.Rectangle, error) {
	out, err := exec.Command("xwininfo", "-name", title).Output()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
	}
	rect, err := parseBounds(string(out))
	if err != nil {
		log.Printf("windowfinder: bad xwininfo output for %q: %v", title, err)
		return image.Rectangle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
	}
	return rect, nil
}

// parseTreeTitles extracts the quoted window names from `xwininfo -root -tree`.
// A tree line carries the name followed by a quoted class hint, e.g.
//
//	0x1c00003 "Firefox": ("Navigator" "firefox") 1920x1040+0+20 +0+20
//
// so the name ends at the quote before ": (", not at the last quote on the line.
func parseTreeTitles(out string) []string {
	var titles []string
	for _, line := range strings.Split(out, "\n") {
		start := strings.Index(line, `"`)
		if start < 0 {
			continue
		}
		rest := line[start+1:]
		end := strings.Index(rest, `": (`)
		if end < 0 {
			end = strings.LastIndex(rest, `"`)
		}
		if end <= 0 {
			continue
		}
		if title := rest[:end]; title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// parseBounds reads the absolute position and size lines of `xwininfo -name`.
func parseBounds(out string) (image.Rectangle, error) {
	var x, y, w, h int
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "Absolute upper-left X:"):
			x = intAfterColon(line)
		case strings.Contains(line, "Absolute upper-left Y:"):
			y = intAfterColon(line)
		case strings.Contains(line, "Width:"):
			w = intAfterColon(line)
		case strings.Contains(line, "Height:"):
			h = intAfterColon(line)
		}
	}
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

func intAfterColon(line string) int {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return n
}
