// Package panel tracks the horizontal offset of the sliding sidebar. The
// animator is pure state: the render loop feeds it timestamps every frame
// while it is animating and positions the sidebar at the returned offset.
package panel

import "time"

// DefaultDuration is how long one slide takes.
const DefaultDuration = 300 * time.Millisecond

// Animator slides the panel between its hidden position (flush with the
// right window edge) and its shown position (shifted left by the panel
// width). States: idle and animating; a toggle starts an animation and the
// animation ends by snapping exactly onto the target.
type Animator struct {
	open        bool
	current     float32
	target      float32
	startOffset float32
	startTime   time.Time
	animating   bool
	duration    time.Duration

	windowWidth float32
	panelWidth  float32
}

// NewAnimator creates an animator for a closed panel pinned to the right
// edge of a window of the given width.
func NewAnimator(windowWidth, panelWidth float32) *Animator {
	a := &Animator{
		duration:    DefaultDuration,
		windowWidth: windowWidth,
		panelWidth:  panelWidth,
	}
	a.current = a.edgeFor(false)
	a.target = a.current
	a.startOffset = a.current
	return a
}

// SetDuration overrides the slide duration. Zero or negative keeps the
// current value.
func (a *Animator) SetDuration(d time.Duration) {
	if d > 0 {
		a.duration = d
	}
}

// Open reports whether the panel's requested state is shown.
func (a *Animator) Open() bool { return a.open }

// Animating reports whether a slide is in progress. While true the render
// loop must keep stepping every frame.
func (a *Animator) Animating() bool { return a.animating }

// Offset returns the current horizontal offset of the panel's left edge.
func (a *Animator) Offset() float32 { return a.current }

func (a *Animator) edgeFor(open bool) float32 {
	if open {
		return a.windowWidth - a.panelWidth
	}
	return a.windowWidth
}

// Toggle flips the requested state and starts animating from the current
// offset, so a toggle mid-slide reverses smoothly.
func (a *Animator) Toggle(now time.Time) {
	a.SetOpen(!a.open, now)
}

// SetOpen animates toward the given state.
func (a *Animator) SetOpen(open bool, now time.Time) {
	a.open = open
	a.target = a.edgeFor(open)
	a.startOffset = a.current
	a.startTime = now
	a.animating = true
}

// Resize re-pins the panel to the new window edge. While idle, current and
// target jump immediately with zero animation frames; while animating, the
// running slide is retargeted to the recomputed edge.
func (a *Animator) Resize(windowWidth float32) {
	a.windowWidth = windowWidth
	edge := a.edgeFor(a.open)
	if !a.animating {
		a.current = edge
		a.target = edge
		a.startOffset = edge
		return
	}
	a.target = edge
}

// Step advances the animation to the given time and returns the new offset.
// Progress follows a cubic ease-out; when progress reaches 1 the offset
// snaps exactly onto the target to avoid floating-point drift.
func (a *Animator) Step(now time.Time) float32 {
	if !a.animating {
		return a.current
	}

	elapsed := float32(now.Sub(a.startTime).Seconds())
	progress := elapsed / float32(a.duration.Seconds())
	if progress > 1 {
		progress = 1
	}
	eased := 1 - cube(1-progress)
	a.current = a.startOffset + (a.target-a.startOffset)*eased

	if progress >= 1 {
		a.current = a.target
		a.startOffset = a.current
		a.animating = false
	}
	return a.current
}

func cube(x float32) float32 { return x * x * x }
