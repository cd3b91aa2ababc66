// Package capture rasterizes the primary display or a single window into an
// in-memory RGBA image.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"

	kbscreenshot "github.com/kbinani/screenshot"

	"screensnap/windowfinder"
)

// Target selects what to capture.
type Target struct {
	window string
}

// FullScreen captures the whole primary display.
func FullScreen() Target { return Target{} }

// NamedWindow captures the bounds of the window with the given title.
func NamedWindow(title string) Target { return Target{window: title} }

// Window returns the window title and whether this is a window target.
func (t Target) Window() (string, bool) { return t.window, t.window != "" }

func (t Target) String() string {
	if t.window == "" {
		return "full screen"
	}
	return fmt.Sprintf("window %q", t.window)
}

// Image is a captured raster with tightly packed RGBA pixels.
type Image struct {
	Width  int
	Height int
	Pix    []byte // 4 bytes per pixel, row-major, no stride padding
}

// PNG encodes the image as a PNG byte buffer.
func (im *Image) PNG() ([]byte, error) {
	rgba := &image.RGBA{
		Pix:    im.Pix,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the image to path as a PNG file.
func (im *Image) Save(path string) error {
	data, err := im.PNG()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Rasterizer grabs pixels for a screen rectangle. Production code uses the
// kbinani/screenshot backend; tests inject a fake.
type Rasterizer interface {
	PrimaryBounds() (image.Rectangle, error)
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

type systemRasterizer struct{}

func (systemRasterizer) PrimaryBounds() (image.Rectangle, error) {
	if kbscreenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return kbscreenshot.GetDisplayBounds(0), nil
}

func (systemRasterizer) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return kbscreenshot.CaptureRect(rect)
}

// Manager performs captures against an injected window directory.
type Manager struct {
	windows windowfinder.Directory
	raster  Rasterizer
}

// NewManager creates a Manager using the host window directory and the real
// screen backend.
func NewManager() *Manager {
	return &Manager{windows: windowfinder.System(), raster: systemRasterizer{}}
}

// NewManagerWith wires explicit dependencies, used by tests.
func NewManagerWith(windows windowfinder.Directory, raster Rasterizer) *Manager {
	return &Manager{windows: windows, raster: raster}
}

// WindowTitles lists the currently visible windows.
func (m *Manager) WindowTitles() ([]string, error) {
	return m.windows.Titles()
}

// Shoot captures the target. A window target that cannot be resolved or
// captured falls back to a full-screen capture; the failure is logged, not
// surfaced. An error is returned only when the fallback itself fails.
func (m *Manager) Shoot(target Target) (*Image, error) {
	if title, ok := target.Window(); ok {
		img, err := m.shootWindow(title)
		if err == nil {
			return img, nil
		}
		log.Printf("capture: window %q failed (%v), falling back to full screen", title, err)
	}
	return m.shootScreen()
}

func (m *Manager) shootScreen() (*Image, error) {
	bounds, err := m.raster.PrimaryBounds()
	if err != nil {
		return nil, err
	}
	raw, err := m.raster.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	img := normalizeRGBA(raw)
	log.Printf("capture: screen captured %dx%d", img.Width, img.Height)
	return img, nil
}

func (m *Manager) shootWindow(title string) (*Image, error) {
	rect, err := m.windows.Bounds(title)
	if err != nil {
		return nil, err
	}
	raw, err := m.raster.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("failed to capture window rect: %w", err)
	}
	img := normalizeRGBA(raw)
	log.Printf("capture: window %q captured %dx%d", title, img.Width, img.Height)
	return img, nil
}

// normalizeRGBA repacks an *image.RGBA (whose rows may carry stride padding
// and whose bounds may not start at the origin) into a tight RGBA buffer.
func normalizeRGBA(src *image.RGBA) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Image{Width: w, Height: h, Pix: make([]byte, w*h*4)}
	for y := 0; y < h; y++ {
		srcOff := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*w*4:(y+1)*w*4], src.Pix[srcOff:srcOff+w*4])
	}
	return out
}
