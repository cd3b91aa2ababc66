//go:build darwin

package windowfinder

import (
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
)

// osascriptDirectory queries System Events through osascript.
type osascriptDirectory struct{}

func systemDirectory() Directory { return osascriptDirectory{} }

func (osascriptDirectory) Titles() ([]string, error) {
	out, err := exec.Command("osascript", "-e",
		`tell application "System Events" to get name of every window of every process`).Output()
	if err != nil {
		return nil, fmt.Errorf("osascript failed: %w", err)
	}

	var titles []string
	for _, part := range strings.Split(string(out), ",") {
		if title := strings.TrimSpace(part); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

func (osascriptDirectory) Bounds(title string) (image.Rectangle, error) {
	script := fmt.Sprintf(`
		tell application "System Events"
			set targetWindow to first window of first application process whose name contains "%s"
			set pos to position of targetWindow
			set dims to size of targetWindow
			return {item 1 of pos, item 2 of pos, item 1 of dims, item 2 of dims}
		end tell
	`, title)

	out, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
	}

	// Output is a list like "x, y, width, height".
	var values []int
	for _, part := range strings.Split(strings.Trim(strings.TrimSpace(string(out)), "{}"), ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			values = append(values, n)
		}
	}
	if len(values) != 4 || values[2] <= 0 || values[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
	}
	return image.Rect(values[0], values[1], values[0]+values[2], values[1]+values[3]), nil
}
