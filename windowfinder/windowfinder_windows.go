//go:build windows

package windowfinder

import (
	"fmt"
	"image"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows      = user32.NewProc("EnumWindows")
	procGetWindowTextW   = user32.NewProc("GetWindowTextW")
	procGetWindowTextLen = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible  = user32.NewProc("IsWindowVisible")
	procGetWindowRect    = user32.NewProc("GetWindowRect")
)

type winRect struct {
	Left, Top, Right, Bottom int32
}

// user32Directory walks top-level windows with EnumWindows.
type user32Directory struct{}

func systemDirectory() Directory { return user32Directory{} }

func (user32Directory) Titles() ([]string, error) {
	var titles []string
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		if title := visibleWindowTitle(hwnd); title != "" {
			titles = append(titles, title)
		}
		return 1 // continue enumeration
	})
	ret, _, err := procEnumWindows.Call(cb, 0)
	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows failed: %w", err)
	}
	return titles, nil
}

func (user32Directory) Bounds(title string) (image.Rectangle, error) {
	var found bool
	var rect winRect
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		if visibleWindowTitle(hwnd) != title {
			return 1
		}
		r, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rect)))
		if r != 0 {
			found = true
			return 0 // stop enumeration
		}
		return 1
	})
	procEnumWindows.Call(cb, 0)

	if !found {
		return image.Rectangle{}, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
	}
	return image.Rect(int(rect.Left), int(rect.Top), int(rect.Right), int(rect.Bottom)), nil
}

func visibleWindowTitle(hwnd uintptr) string {
	if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
		return ""
	}
	length, _, _ := procGetWindowTextLen.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), length+1)
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}
