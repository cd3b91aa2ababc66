// Package appstate holds the state shared between the render loop and
// background capture/analysis tasks. One Store is constructed at startup and
// handed to every task; all access goes through short-held critical sections
// and no lock is ever held across blocking I/O.
package appstate

import (
	"sync"
	"time"
)

// ChatEntry is one exchange unit shown in the transcript. Entries are
// append-only and only removed in bulk by Clear.
type ChatEntry struct {
	Text     string
	FromUser bool
	When     time.Time
}

// Snapshot is a consistent copy of the mutable fields, taken under the lock.
type Snapshot struct {
	Processing bool
	ImageData  []byte
	TextureSeq uint64
	Response   string
}

// Store is the shared state cell.
type Store struct {
	mu         sync.Mutex
	processing bool
	imageData  []byte
	textureSeq uint64 // bumped on every image publish; views rebuild lazily
	response   string
	history    []ChatEntry
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current state. The image bytes are shared,
// not copied; callers treat them as immutable.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Processing: s.processing,
		ImageData:  s.imageData,
		TextureSeq: s.textureSeq,
		Response:   s.response,
	}
}

// SetProcessing flips the in-flight flag.
func (s *Store) SetProcessing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = v
}

// Processing reports whether an analysis is in flight.
func (s *Store) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// BeginProcessing atomically claims the in-flight slot. It returns false when
// an analysis is already running, so a second request cannot race past the
// first.
func (s *Store) BeginProcessing(statusText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	s.processing = true
	s.response = statusText
	return true
}

// PublishImage replaces the current image bytes and invalidates any rendered
// texture so the view recomputes it lazily.
func (s *Store) PublishImage(png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageData = png
	s.textureSeq++
}

// ImageData returns the current image bytes (shared, treated as immutable).
func (s *Store) ImageData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageData
}

// SetResponse overwrites the displayed result text.
func (s *Store) SetResponse(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = text
}

// SetResponseWhileProcessing writes text only while an analysis still holds
// the in-flight slot. It reports whether the write happened, so a busy note
// checked against a stale observation cannot clobber a result that settled in
// the meantime.
func (s *Store) SetResponseWhileProcessing(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.processing {
		return false
	}
	s.response = text
	return true
}

// FinishProcessing publishes the result text and clears the in-flight flag in
// one critical section, success or failure alike.
func (s *Store) FinishProcessing(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = text
	s.processing = false
}

// TakeResponse returns the response text and clears it when it matches the
// expected value, so a completed answer is appended to the transcript exactly
// once even if a newer response landed in between.
func (s *Store) TakeResponse(expected string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.response != expected {
		return false
	}
	s.response = ""
	return true
}

// AppendChat adds one transcript entry.
func (s *Store) AppendChat(entry ChatEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
}

// History returns a copy of the transcript.
func (s *Store) History() []ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatEntry(nil), s.history...)
}

// Clear drops the image, response and transcript in bulk. The processing
// flag is left alone; an in-flight task still owns it.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageData = nil
	s.textureSeq++
	s.response = ""
	s.history = nil
}
