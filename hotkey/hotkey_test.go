package hotkey

import (
	"reflect"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"CtrlAltS", "Ctrl+Alt+S", []string{"ctrl", "alt", "s"}},
		{"WinMapsToCmd", "Win+Shift+P", []string{"cmd", "shift", "p"}},
		{"SuperMapsToCmd", "super+q", []string{"cmd", "q"}},
		{"Whitespace", " ctrl + alt + s ", []string{"ctrl", "alt", "s"}},
		{"Empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCombo(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCombo(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestListenRejectsEmptyCombo(t *testing.T) {
	// Must not panic or spawn a hook goroutine for an empty combo.
	Listen("", func() {})
}
