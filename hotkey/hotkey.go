// Package hotkey registers a global key combination that toggles the sidebar
// from anywhere on the desktop.
package hotkey

import (
	"log"
	"strings"

	gohook "github.com/robotn/gohook"
)

// Listen watches global key events for the given combo (e.g. "Ctrl+Alt+S")
// and invokes fire each time it is pressed. A hook failure is logged, never
// fatal; the GUI stays usable without the hotkey.
func Listen(combo string, fire func()) {
	keys := ParseCombo(combo)
	if len(keys) == 0 {
		log.Printf("hotkey: empty combo %q, not registering", combo)
		return
	}
	log.Printf("hotkey: registering %v", keys)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: panic in listener goroutine: %v", r)
			}
		}()

		hook := gohook.Start()
		if hook == nil {
			log.Printf("hotkey: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()

		gohook.Register(gohook.KeyDown, keys, func(e gohook.Event) {
			log.Printf("hotkey: %s pressed", combo)
			fire()
		})
		<-gohook.Process(hook)
	}()
}

// ParseCombo converts "Ctrl+Alt+S" into the lowercase key names gohook
// expects. Win/Cmd/Super all map to the command key.
func ParseCombo(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}
