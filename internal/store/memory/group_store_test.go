package memory

import (
	"testing"
	"time"
)

func TestGroupStore_Attach(t *testing.T) {
	s := NewGroupStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := 300 * time.Second

	g, joined := s.Attach(newAlert("a1", base), window, base)
	if joined {
		t.Fatal("first alert should start a group")
	}
	if g.PrimaryAlertID != "a1" || g.CorrelationCount != 1 {
		t.Errorf("group = %+v", g)
	}

	s.Attach(newAlert("a2", base.Add(100*time.Second)), window, base.Add(100*time.Second))
	g, joined = s.Attach(newAlert("a3", base.Add(250*time.Second)), window, base.Add(250*time.Second))
	if !joined {
		t.Fatal("alert inside the window should join")
	}
	if g.CorrelationCount != 3 || len(g.AlertIDs) != 3 {
		t.Errorf("count = %d ids = %v", g.CorrelationCount, g.AlertIDs)
	}
	if !g.LastUpdated.Equal(base.Add(250 * time.Second)) {
		t.Errorf("LastUpdated = %v", g.LastUpdated)
	}

	g, joined = s.Attach(newAlert("a4", base.Add(window)), window, base.Add(window))
	if joined {
		t.Error("group should age out at the window edge")
	}
	if g.PrimaryAlertID != "a4" || g.CorrelationCount != 1 {
		t.Errorf("new group = %+v", g)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestGroupStore_RemoveStale(t *testing.T) {
	s := NewGroupStore()
	base := time.Now()
	s.Attach(newAlert("a1", base), time.Minute, base)

	if n := s.RemoveStale(base); n != 0 {
		t.Errorf("RemoveStale at LastUpdated removed %d, want 0", n)
	}
	if n := s.RemoveStale(base.Add(time.Second)); n != 1 {
		t.Errorf("RemoveStale removed %d, want 1", n)
	}
	if _, ok := s.Get(testKey); ok {
		t.Error("stale group should be gone")
	}
}

func TestGroupStore_GetReturnsCopy(t *testing.T) {
	s := NewGroupStore()
	now := time.Now()
	s.Attach(newAlert("a1", now), time.Minute, now)

	g, _ := s.Get(testKey)
	g.AlertIDs[0] = "mutated"

	again, _ := s.Get(testKey)
	if again.AlertIDs[0] != "a1" {
		t.Error("Get should return an independent copy")
	}
}
