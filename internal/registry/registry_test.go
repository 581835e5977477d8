package registry

import (
	"errors"
	"testing"
)

func TestRegisterAndResponder(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")

	got, ok := r.Responder("topic-a")
	if !ok || got != "assistant-1" {
		t.Fatalf("Responder = %q, %v; want assistant-1, true", got, ok)
	}
	if _, ok := r.Responder("topic-b"); ok {
		t.Error("unregistered topic should report ok=false")
	}
}

func TestRegisterReplacesResponderKeepsState(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")
	r.SetPriority("topic-a", 80)
	r.SetLoading("topic-a", true)

	r.Register("topic-a", "assistant-2")

	if got, _ := r.Responder("topic-a"); got != "assistant-2" {
		t.Errorf("Responder = %q, want assistant-2", got)
	}
	if got := r.Priority("topic-a"); got != 80 {
		t.Errorf("Priority = %d, want 80 after re-register", got)
	}
	if !r.IsLoading("topic-a") {
		t.Error("loading state should survive re-register")
	}
}

func TestSwitchResponder(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")

	if err := r.SwitchResponder("topic-a", "assistant-2"); err != nil {
		t.Fatalf("SwitchResponder error: %v", err)
	}
	if got, _ := r.Responder("topic-a"); got != "assistant-2" {
		t.Errorf("Responder = %q, want assistant-2", got)
	}

	err := r.SwitchResponder("topic-b", "assistant-2")
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("SwitchResponder on unknown topic = %v, want ErrNotRegistered", err)
	}
}

func TestPriorityDefaults(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")

	if got := r.Priority("topic-a"); got != DefaultPriority {
		t.Errorf("Priority = %d, want %d", got, DefaultPriority)
	}
	if got := r.Priority("never-registered"); got != DefaultPriority {
		t.Errorf("Priority for unknown topic = %d, want %d", got, DefaultPriority)
	}

	r.SetPriority("topic-a", 7)
	if got := r.Priority("topic-a"); got != 7 {
		t.Errorf("Priority = %d, want 7", got)
	}
	// SetPriority on an unknown topic must not create an entry.
	r.SetPriority("topic-b", 99)
	if _, ok := r.Responder("topic-b"); ok {
		t.Error("SetPriority must not register topics")
	}
}

func TestLoadingLifecycle(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")

	if r.IsLoading("topic-a") {
		t.Error("fresh topic should not be loading")
	}
	r.SetLoading("topic-a", true)
	if !r.IsLoading("topic-a") {
		t.Error("topic should be loading after SetLoading(true)")
	}
	r.SetLoading("topic-a", false)
	if r.IsLoading("topic-a") {
		t.Error("topic should be ready after SetLoading(false)")
	}
	if r.IsLoading("never-registered") {
		t.Error("unknown topic should not report loading")
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")
	r.Unregister("topic-a")

	if _, ok := r.Responder("topic-a"); ok {
		t.Error("topic should be gone after Unregister")
	}
}

func TestTopicsSnapshot(t *testing.T) {
	r := New()
	r.Register("topic-a", "assistant-1")
	r.Register("topic-b", "assistant-2")
	r.SetPriority("topic-b", 90)

	infos := r.Topics()
	if len(infos) != 2 {
		t.Fatalf("Topics returned %d entries, want 2", len(infos))
	}
	byID := make(map[string]TopicInfo)
	for _, ti := range infos {
		byID[ti.TopicID] = ti
	}
	if byID["topic-b"].Priority != 90 {
		t.Errorf("topic-b priority = %d, want 90", byID["topic-b"].Priority)
	}
	if byID["topic-a"].ResponderID != "assistant-1" {
		t.Errorf("topic-a responder = %q, want assistant-1", byID["topic-a"].ResponderID)
	}
}
