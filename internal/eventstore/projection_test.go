package eventstore

import (
	"errors"
	"testing"
	"time"
)

func mustEvent(t *testing.T) func(*BaseEvent, error) *BaseEvent {
	return func(e *BaseEvent, err error) *BaseEvent {
		t.Helper()
		if err != nil {
			t.Fatalf("failed to create event: %v", err)
		}
		return e
	}
}

func TestEventConstructors(t *testing.T) {
	started := mustEvent(t)(NewBuildStarted(testBuildID, BuildStartedPayload{Trigger: "watch", Source: "directory", Prefix: "/blog/"}))
	if started.Type() != TypeBuildStarted || started.Metadata()["trigger"] != "watch" {
		t.Fatalf("unexpected BuildStarted: %+v", started)
	}
	var p BuildStartedPayload
	if err := Decode(started, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Prefix != "/blog/" || p.Source != "directory" {
		t.Errorf("payload not round-tripped: %+v", p)
	}

	enumerated := mustEvent(t)(NewRoutesEnumerated(testBuildID, nil))
	if string(enumerated.Payload()) != `{"count":0,"routes":[]}` {
		t.Errorf("nil routes must encode as an empty list, got %s", enumerated.Payload())
	}

	failed := mustEvent(t)(NewEnumerationFailed(testBuildID, "./assets/posts", errors.New("posts directory not found"), nil))
	var fp EnumerationFailedPayload
	if err := Decode(failed, &fp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fp.Error != "posts directory not found" || fp.Partial == nil {
		t.Errorf("unexpected payload: %+v", fp)
	}

	bad := &BaseEvent{EventType: "Broken", EventPayload: []byte("{")}
	if err := Decode(bad, &fp); err == nil {
		t.Error("expected decode error")
	}
}

func TestBuildHistory_Apply(t *testing.T) {
	h := NewBuildHistory()

	started := mustEvent(t)(NewBuildStarted(testBuildID, BuildStartedPayload{Trigger: "cli"}))
	h.Apply(started)

	s, ok := h.Get(testBuildID)
	if !ok {
		t.Fatal("expected build to exist")
	}
	if s.Status != StatusRunning || s.Trigger != "cli" {
		t.Errorf("unexpected summary after start: %+v", s)
	}

	h.Apply(mustEvent(t)(NewEnumerationFailed(testBuildID, "posts", errors.New("unreadable"), []string{"/blog/a"})))
	completed := mustEvent(t)(NewBuildCompleted(testBuildID, BuildCompletedPayload{Outcome: "warning", Routes: 1, Pages: 1}))
	completed.EventTimestamp = started.EventTimestamp.Add(2 * time.Second)
	h.Apply(completed)

	s, _ = h.Get(testBuildID)
	if s.Status != "warning" {
		t.Errorf("expected status warning, got %q", s.Status)
	}
	if s.EnumerationError != "unreadable" {
		t.Errorf("expected enumeration error, got %q", s.EnumerationError)
	}
	if len(s.Routes) != 1 || s.Routes[0] != "/blog/a" {
		t.Errorf("expected partial routes, got %v", s.Routes)
	}
	if s.CompletedAt == nil || s.Duration != 2*time.Second {
		t.Errorf("expected completion timing, got %v / %v", s.CompletedAt, s.Duration)
	}

	if _, ok := h.Get("other"); ok {
		t.Error("unexpected build")
	}
}

func TestLoadHistory_NewestFirst(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"first", "second", "third"} {
		e := mustEvent(t)(NewBuildStarted(id, BuildStartedPayload{Trigger: "cli"}))
		e.EventTimestamp = base.Add(time.Duration(i) * time.Minute)
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
		done := mustEvent(t)(NewBuildCompleted(id, BuildCompletedPayload{Outcome: "success", Pages: i}))
		done.EventTimestamp = e.EventTimestamp.Add(time.Second)
		if err := store.Append(ctx, done); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	h, err := LoadHistory(ctx, store)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	list := h.List(2)
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].BuildID != "third" || list[1].BuildID != "second" {
		t.Errorf("unexpected order: %s, %s", list[0].BuildID, list[1].BuildID)
	}
	if list[0].Status != "success" || list[0].Pages != 2 {
		t.Errorf("unexpected summary: %+v", list[0])
	}
	if all := h.List(0); len(all) != 3 {
		t.Errorf("expected all 3 builds, got %d", len(all))
	}
}
