package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"testing"

	"screensnap/windowfinder"
)

type fakeDirectory struct {
	titles []string
	bounds map[string]image.Rectangle
}

func (f *fakeDirectory) Titles() ([]string, error) { return f.titles, nil }

func (f *fakeDirectory) Bounds(title string) (image.Rectangle, error) {
	rect, ok := f.bounds[title]
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: %q", windowfinder.ErrWindowNotFound, title)
	}
	return rect, nil
}

type fakeRasterizer struct {
	primary   image.Rectangle
	failRects map[image.Rectangle]bool
	captured  []image.Rectangle
}

func (f *fakeRasterizer) PrimaryBounds() (image.Rectangle, error) {
	if f.primary.Empty() {
		return image.Rectangle{}, errors.New("no active displays found")
	}
	return f.primary, nil
}

func (f *fakeRasterizer) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	f.captured = append(f.captured, rect)
	if f.failRects[rect] {
		return nil, errors.New("capture failed")
	}
	img := image.NewRGBA(rect)
	// Fill with a recognizable pattern so tests can assert on content.
	for i := range img.Pix {
		img.Pix[i] = byte(i % 251)
	}
	return img, nil
}

func newTestManager() (*Manager, *fakeDirectory, *fakeRasterizer) {
	dir := &fakeDirectory{
		titles: []string{"Editor", "Browser"},
		bounds: map[string]image.Rectangle{
			"Editor": image.Rect(100, 50, 420, 290),
		},
	}
	raster := &fakeRasterizer{primary: image.Rect(0, 0, 640, 480)}
	return NewManagerWith(dir, raster), dir, raster
}

func TestShootFullScreen(t *testing.T) {
	m, _, raster := newTestManager()

	img, err := m.Shoot(FullScreen())
	if err != nil {
		t.Fatalf("Shoot failed: %v", err)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("Expected 640x480, got %dx%d", img.Width, img.Height)
	}
	if len(raster.captured) != 1 || raster.captured[0] != raster.primary {
		t.Errorf("Expected one primary-bounds capture, got %v", raster.captured)
	}
}

func TestShootNamedWindow(t *testing.T) {
	m, _, raster := newTestManager()

	img, err := m.Shoot(NamedWindow("Editor"))
	if err != nil {
		t.Fatalf("Shoot failed: %v", err)
	}
	if img.Width != 320 || img.Height != 240 {
		t.Errorf("Expected 320x240, got %dx%d", img.Width, img.Height)
	}
	if len(raster.captured) != 1 {
		t.Errorf("Expected exactly one capture, got %d", len(raster.captured))
	}
}

func TestShootUnknownWindowFallsBack(t *testing.T) {
	m, _, raster := newTestManager()

	img, err := m.Shoot(NamedWindow("NoSuchWindow"))
	if err != nil {
		t.Fatalf("Expected fallback capture to succeed, got %v", err)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("Expected full-screen fallback dimensions, got %dx%d", img.Width, img.Height)
	}
	if len(raster.captured) != 1 || raster.captured[0] != raster.primary {
		t.Errorf("Expected fallback to capture primary bounds, got %v", raster.captured)
	}
}

func TestShootWindowCaptureFailureFallsBack(t *testing.T) {
	m, dir, raster := newTestManager()
	raster.failRects = map[image.Rectangle]bool{dir.bounds["Editor"]: true}

	img, err := m.Shoot(NamedWindow("Editor"))
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if img.Width != 640 {
		t.Errorf("Expected full-screen fallback, got %dx%d", img.Width, img.Height)
	}
}

func TestShootTotalFailure(t *testing.T) {
	dir := &fakeDirectory{}
	raster := &fakeRasterizer{} // empty primary: no display
	m := NewManagerWith(dir, raster)

	if _, err := m.Shoot(NamedWindow("Editor")); err == nil {
		t.Error("Expected error when both window and fallback capture fail")
	}
}

func TestPNGEncodesWellFormed(t *testing.T) {
	m, _, _ := newTestManager()
	img, err := m.Shoot(FullScreen())
	if err != nil {
		t.Fatalf("Shoot failed: %v", err)
	}

	data, err := img.PNG()
	if err != nil {
		t.Fatalf("PNG failed: %v", err)
	}
	magic := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if len(data) < 8 || !bytes.Equal(data[:8], magic) {
		t.Error("PNG output missing magic header")
	}
}

func TestNormalizeRGBAOffsetBounds(t *testing.T) {
	// kbinani returns images whose bounds start at the capture origin, not
	// at (0,0); the normalized buffer must be tight regardless.
	src := image.NewRGBA(image.Rect(100, 50, 102, 52))
	for i := range src.Pix {
		src.Pix[i] = byte(i + 1)
	}

	out := normalizeRGBA(src)
	if out.Width != 2 || out.Height != 2 {
		t.Fatalf("Expected 2x2, got %dx%d", out.Width, out.Height)
	}
	if len(out.Pix) != 2*2*4 {
		t.Fatalf("Expected tight 16-byte buffer, got %d", len(out.Pix))
	}
	if out.Pix[0] != src.Pix[src.PixOffset(100, 50)] {
		t.Error("First pixel does not match source origin pixel")
	}
}
