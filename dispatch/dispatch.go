// Package dispatch spawns the background capture and analysis tasks and
// publishes their results into the shared state cell. Tasks get a structured
// handle instead of being fired and forgotten, and at most one analysis can
// be in flight at a time regardless of which surface triggered it.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"screensnap/appstate"
	"screensnap/capture"
	"screensnap/ollama"
)

// User-facing messages written to the response field.
const (
	MsgCaptureFirst  = "Please capture an image first."
	MsgProcessing    = "Processing image..."
	MsgBusy          = "Analysis already in progress."
	MsgCleared       = "Chat history and image cleared."
	MsgCaptureFailed = "Capture failed. Check the log for details."
)

// Capturer produces an image for a target. *capture.Manager satisfies it.
type Capturer interface {
	Shoot(target capture.Target) (*capture.Image, error)
	WindowTitles() ([]string, error)
}

// Analyzer sends an image plus prompt to the inference endpoint.
// *ollama.Client satisfies it.
type Analyzer interface {
	Describe(ctx context.Context, model, prompt string, imagePNG []byte) (string, error)
}

// Task is the handle for one background operation. Callers can wait on it or
// ignore it; the work runs to completion either way.
type Task struct {
	done chan struct{}
}

func newTask() *Task { return &Task{done: make(chan struct{})} }

// completedTask returns an already-finished handle for operations that
// short-circuited without spawning.
func completedTask() *Task {
	t := newTask()
	close(t.done)
	return t
}

// Done is closed when the task has published its result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes.
func (t *Task) Wait() { <-t.done }

// Dispatcher owns the background-task entry points. Model selection is
// mutable through SetModel; everything else is fixed at construction.
type Dispatcher struct {
	store    *appstate.Store
	capturer Capturer
	analyzer Analyzer
	model    string
	deadline time.Duration
}

// New creates a Dispatcher. The deadline bounds one analysis round trip.
func New(store *appstate.Store, capturer Capturer, analyzer Analyzer, model string, deadline time.Duration) *Dispatcher {
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}
	return &Dispatcher{
		store:    store,
		capturer: capturer,
		analyzer: analyzer,
		model:    model,
		deadline: deadline,
	}
}

// Model returns the currently selected model name.
func (d *Dispatcher) Model() string { return d.model }

// SetModel changes the model used by subsequent analyses.
func (d *Dispatcher) SetModel(name string) { d.model = name }

// Store exposes the shared state cell for the render loop.
func (d *Dispatcher) Store() *appstate.Store { return d.store }

// WindowTitles lists capture candidates for the window picker.
func (d *Dispatcher) WindowTitles() ([]string, error) { return d.capturer.WindowTitles() }

// Capture spawns a background capture of the target. On success the PNG
// bytes are published into the store in exactly one write; on total failure
// the cell is left untouched and only a log entry (plus a response note for
// the GUI) is produced.
func (d *Dispatcher) Capture(target capture.Target) *Task {
	t := newTask()
	go func() {
		defer close(t.done)
		img, err := d.capturer.Shoot(target)
		if err != nil {
			log.Printf("dispatch: capture of %s failed: %v", target, err)
			return
		}
		png, err := img.PNG()
		if err != nil {
			log.Printf("dispatch: PNG encode failed: %v", err)
			return
		}
		d.store.PublishImage(png)
		log.Printf("dispatch: %s captured, %d bytes published", target, len(png))
	}()
	return t
}

// Analyze spawns a background analysis of the current image with the given
// prompt (empty selects the default). Preconditions are checked before any
// task starts: with no captured image the fixed capture-first message is
// written and no goroutine is spawned, and a second analysis while one is in
// flight is rejected.
func (d *Dispatcher) Analyze(prompt string) *Task {
	image := d.store.ImageData()
	if len(image) == 0 {
		d.store.SetResponse(MsgCaptureFirst)
		return completedTask()
	}

	if !d.store.BeginProcessing(MsgProcessing) {
		log.Printf("dispatch: analysis rejected, one already in flight")
		// Conditional write: if the running analysis settled in the
		// meantime, its result must not be overwritten by the busy note.
		d.store.SetResponseWhileProcessing(MsgBusy)
		return completedTask()
	}

	model := d.model
	t := newTask()
	go func() {
		defer close(t.done)

		ctx, cancel := context.WithTimeout(context.Background(), d.deadline)
		defer cancel()

		// The task analyzes its own copy of the bytes; a capture may
		// replace the published image mid-flight without affecting it.
		text, err := d.analyzer.Describe(ctx, model, prompt, image)
		if err != nil {
			log.Printf("dispatch: analysis failed: %v", err)
			d.store.FinishProcessing(failureText(err))
			return
		}
		log.Printf("dispatch: analysis complete, %d chars", len(text))
		d.store.FinishProcessing(text)
	}()
	return t
}

// failureText renders a user-facing explanation with a remediation hint
// chosen from the structured error kind.
func failureText(err error) string {
	text := fmt.Sprintf("AI processing failed: %v", err)
	if hint := ollama.HintFor(err); hint != "" {
		text += "\n\n" + hint
	}
	return text
}
