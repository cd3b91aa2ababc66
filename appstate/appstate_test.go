package appstate

import (
	"sync"
	"testing"
	"time"
)

func TestPublishImageBumpsTextureSeq(t *testing.T) {
	s := NewStore()
	before := s.Snapshot().TextureSeq

	s.PublishImage([]byte{1, 2, 3})
	snap := s.Snapshot()
	if snap.TextureSeq != before+1 {
		t.Errorf("Expected texture seq %d, got %d", before+1, snap.TextureSeq)
	}
	if len(snap.ImageData) != 3 {
		t.Errorf("Expected 3 image bytes, got %d", len(snap.ImageData))
	}
}

func TestBeginProcessingClaimsSlotOnce(t *testing.T) {
	s := NewStore()
	if !s.BeginProcessing("Processing image...") {
		t.Fatal("Expected first BeginProcessing to succeed")
	}
	if s.BeginProcessing("again") {
		t.Fatal("Expected second BeginProcessing to be rejected")
	}
	if s.Snapshot().Response != "Processing image..." {
		t.Errorf("Second call must not overwrite status, got %q", s.Snapshot().Response)
	}

	s.FinishProcessing("done")
	if s.Processing() {
		t.Error("Expected processing=false after FinishProcessing")
	}
	if !s.BeginProcessing("next") {
		t.Error("Expected slot to be reclaimable after finish")
	}
}

func TestBeginProcessingUnderContention(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	wins := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginProcessing("go") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("Expected exactly one winner, got %d", count)
	}
}

func TestTakeResponseAppendsOnce(t *testing.T) {
	s := NewStore()
	s.SetResponse("A blue desktop.")

	if !s.TakeResponse("A blue desktop.") {
		t.Fatal("Expected TakeResponse to claim matching text")
	}
	if s.TakeResponse("A blue desktop.") {
		t.Fatal("Expected second TakeResponse to fail after drain")
	}

	// A newer response must not be drained by a stale expectation.
	s.SetResponse("newer")
	if s.TakeResponse("A blue desktop.") {
		t.Error("Expected stale TakeResponse to leave newer response alone")
	}
	if s.Snapshot().Response != "newer" {
		t.Errorf("Expected response %q preserved, got %q", "newer", s.Snapshot().Response)
	}
}

func TestClearDropsEverythingButProcessing(t *testing.T) {
	s := NewStore()
	s.PublishImage([]byte{1})
	s.SetResponse("text")
	s.AppendChat(ChatEntry{Text: "hi", FromUser: true, When: time.Now()})
	s.SetProcessing(true)
	seqBefore := s.Snapshot().TextureSeq

	s.Clear()

	snap := s.Snapshot()
	if snap.ImageData != nil || snap.Response != "" || len(s.History()) != 0 {
		t.Error("Expected image, response and history cleared")
	}
	if snap.TextureSeq == seqBefore {
		t.Error("Expected Clear to invalidate the texture")
	}
	if !snap.Processing {
		t.Error("Clear must not steal the in-flight flag from a running task")
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewStore()
	s.AppendChat(ChatEntry{Text: "one"})
	h := s.History()
	h[0].Text = "mutated"
	if s.History()[0].Text != "one" {
		t.Error("History must return a copy, not the backing slice")
	}
}

func TestSetResponseWhileProcessingRespectsSettledResult(t *testing.T) {
	s := NewStore()
	if !s.BeginProcessing("working") {
		t.Fatal("Expected claim to succeed")
	}
	if !s.SetResponseWhileProcessing("still busy") {
		t.Error("Expected write while the slot is held")
	}

	s.FinishProcessing("the answer")

	if s.SetResponseWhileProcessing("still busy") {
		t.Error("Expected rejected write after completion")
	}
	if got := s.Snapshot().Response; got != "the answer" {
		t.Errorf("Expected settled result preserved, got %q", got)
	}
}
