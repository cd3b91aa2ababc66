package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"screensnap/appstate"
	"screensnap/capture"
	"screensnap/ollama"
)

type fakeCapturer struct {
	mu      sync.Mutex
	img     *capture.Image
	err     error
	titles  []string
	targets []capture.Target
}

func (f *fakeCapturer) Shoot(target capture.Target) (*capture.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func (f *fakeCapturer) WindowTitles() ([]string, error) { return f.titles, nil }

type fakeAnalyzer struct {
	mu      sync.Mutex
	text    string
	err     error
	block   chan struct{} // when set, Describe waits until closed
	calls   int
	prompts []string
}

func (f *fakeAnalyzer) Describe(ctx context.Context, model, prompt string, imagePNG []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.text, f.err
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testImage() *capture.Image {
	return &capture.Image{Width: 2, Height: 2, Pix: make([]byte, 16)}
}

func newTestDispatcher(cap *fakeCapturer, an *fakeAnalyzer) *Dispatcher {
	return New(appstate.NewStore(), cap, an, "llava:latest", time.Second)
}

func TestCapturePublishesPNG(t *testing.T) {
	cap := &fakeCapturer{img: testImage()}
	d := newTestDispatcher(cap, &fakeAnalyzer{})

	d.Capture(capture.FullScreen()).Wait()

	data := d.Store().ImageData()
	if len(data) == 0 {
		t.Fatal("Expected image bytes published")
	}
	magic := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	if !bytes.Equal(data[:8], magic) {
		t.Error("Published bytes are not a well-formed PNG")
	}
}

func TestCaptureTotalFailureLeavesCellUntouched(t *testing.T) {
	cap := &fakeCapturer{err: errors.New("no display")}
	d := newTestDispatcher(cap, &fakeAnalyzer{})
	seqBefore := d.Store().Snapshot().TextureSeq

	d.Capture(capture.FullScreen()).Wait()

	snap := d.Store().Snapshot()
	if snap.ImageData != nil {
		t.Error("Expected no image published on total failure")
	}
	if snap.TextureSeq != seqBefore {
		t.Error("Expected texture untouched on total failure")
	}
}

func TestAnalyzeWithoutImageShortCircuits(t *testing.T) {
	an := &fakeAnalyzer{text: "never"}
	d := newTestDispatcher(&fakeCapturer{}, an)

	d.Analyze("what is this").Wait()

	if got := d.Store().Snapshot().Response; got != MsgCaptureFirst {
		t.Errorf("Expected %q, got %q", MsgCaptureFirst, got)
	}
	if an.callCount() != 0 {
		t.Error("Expected no background task without an image")
	}
	if d.Store().Processing() {
		t.Error("Expected processing to stay false")
	}
}

func TestAnalyzePublishesExactResponse(t *testing.T) {
	an := &fakeAnalyzer{text: "A blue desktop."}
	d := newTestDispatcher(&fakeCapturer{}, an)
	d.Store().PublishImage([]byte("png"))

	d.Analyze("").Wait()

	snap := d.Store().Snapshot()
	if snap.Response != "A blue desktop." {
		t.Errorf("Expected exact response text, got %q", snap.Response)
	}
	if snap.Processing {
		t.Error("Expected processing cleared after completion")
	}
}

func TestAnalyzeFailureIncludesHintAndClearsProcessing(t *testing.T) {
	an := &fakeAnalyzer{err: &ollama.Error{Kind: ollama.KindUnavailable, Err: errors.New("connection refused")}}
	d := newTestDispatcher(&fakeCapturer{}, an)
	d.Store().PublishImage([]byte("png"))

	d.Analyze("").Wait()

	snap := d.Store().Snapshot()
	if !strings.Contains(snap.Response, "ollama serve") {
		t.Errorf("Expected serve hint in response, got %q", snap.Response)
	}
	if snap.Processing {
		t.Error("Expected processing=false after failure")
	}
}

func TestAnalyzeModelMissingHint(t *testing.T) {
	an := &fakeAnalyzer{err: &ollama.Error{Kind: ollama.KindModelMissing, Model: "llava:latest"}}
	d := newTestDispatcher(&fakeCapturer{}, an)
	d.Store().PublishImage([]byte("png"))

	d.Analyze("").Wait()

	if got := d.Store().Snapshot().Response; !strings.Contains(got, "ollama pull llava:latest") {
		t.Errorf("Expected pull hint, got %q", got)
	}
}

func TestSecondAnalyzeRejectedWhileInFlight(t *testing.T) {
	an := &fakeAnalyzer{text: "done", block: make(chan struct{})}
	d := newTestDispatcher(&fakeCapturer{}, an)
	d.Store().PublishImage([]byte("png"))

	first := d.Analyze("")
	// Give the first goroutine time to claim the slot.
	deadline := time.After(time.Second)
	for !d.Store().Processing() {
		select {
		case <-deadline:
			t.Fatal("First analysis never claimed the slot")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	second := d.Analyze("")
	second.Wait() // must complete immediately without spawning

	if got := d.Store().Snapshot().Response; got != MsgBusy {
		t.Errorf("Expected busy note while first is in flight, got %q", got)
	}

	close(an.block)
	first.Wait()

	if an.callCount() != 1 {
		t.Errorf("Expected exactly one Describe call, got %d", an.callCount())
	}
	if got := d.Store().Snapshot().Response; got != "done" {
		t.Errorf("Expected in-flight result to land, got %q", got)
	}
}

func TestCaptureDuringAnalysisIsTolerated(t *testing.T) {
	an := &fakeAnalyzer{text: "about the old image", block: make(chan struct{})}
	cap := &fakeCapturer{img: testImage()}
	d := newTestDispatcher(cap, an)
	d.Store().PublishImage([]byte("old-png"))

	analysis := d.Analyze("")
	for !d.Store().Processing() {
		time.Sleep(time.Millisecond)
	}

	// A capture may replace the image while the analysis is in flight; the
	// analysis keeps its own copy of the bytes.
	d.Capture(capture.FullScreen()).Wait()

	close(an.block)
	analysis.Wait()

	if got := d.Store().Snapshot().Response; got != "about the old image" {
		t.Errorf("Expected analysis of prior image to land, got %q", got)
	}
	if len(d.Store().ImageData()) == 0 {
		t.Error("Expected new capture to remain published")
	}
}

// TestCaptureThenAnalyzeScenario walks the full path: capture publishes a
// well-formed PNG, then an analysis against a mocked endpoint lands in the
// transcript.
func TestCaptureThenAnalyzeScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llava:latest","size":1}]}`))
		case "/api/generate":
			var req struct {
				Model  string   `json:"model"`
				Images []string `json:"images"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Model != "llava:latest" {
				http.Error(w, "wrong model", http.StatusBadRequest)
				return
			}
			png, err := base64.StdEncoding.DecodeString(req.Images[0])
			if err != nil || !bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}) {
				http.Error(w, "image is not a PNG", http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"response":"A blue desktop."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	raster := rasterStub{bounds: image.Rect(0, 0, 8, 8)}
	mgr := capture.NewManagerWith(dirStub{}, raster)
	d := New(appstate.NewStore(), mgr, ollama.New(srv.URL), "llava:latest", time.Second)

	d.Capture(capture.FullScreen()).Wait()
	if len(d.Store().ImageData()) == 0 {
		t.Fatal("Expected capture to publish an image")
	}

	d.Analyze("").Wait()

	text := d.Store().Snapshot().Response
	if text != "A blue desktop." {
		t.Fatalf("Expected assistant text %q, got %q", "A blue desktop.", text)
	}

	// The GUI drains the response into the transcript exactly once.
	if d.Store().TakeResponse(text) {
		d.Store().AppendChat(appstate.ChatEntry{Text: text, FromUser: false, When: time.Now()})
	}
	history := d.Store().History()
	if len(history) != 1 || history[0].Text != "A blue desktop." || history[0].FromUser {
		t.Errorf("Expected one assistant entry, got %+v", history)
	}
}

type dirStub struct{}

func (dirStub) Titles() ([]string, error) { return nil, nil }
func (dirStub) Bounds(string) (image.Rectangle, error) {
	return image.Rectangle{}, errors.New("not implemented")
}

type rasterStub struct{ bounds image.Rectangle }

func (r rasterStub) PrimaryBounds() (image.Rectangle, error) { return r.bounds, nil }
func (r rasterStub) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return image.NewRGBA(rect), nil
}
