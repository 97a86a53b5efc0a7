package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
	if id2.Compare(id1) <= 0 {
		t.Error("Monotonic IDs should sort after their predecessors")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SessionPrefix, RequestPrefix, EventPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}
		if !IsValidPrefixed(id, prefix) {
			t.Errorf("ID should validate against its prefix: %s", id)
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	if s := NewSessionID(); !strings.HasPrefix(s.String(), "sess_") {
		t.Errorf("SessionID should start with 'sess_', got: %s", s)
	}
	if r := NewRequestID(); !strings.HasPrefix(r.String(), "req_") {
		t.Errorf("RequestID should start with 'req_', got: %s", r)
	}
	if e := NewEventID(); !strings.HasPrefix(e.String(), "evt_") {
		t.Errorf("EventID should start with 'evt_', got: %s", e)
	}
}

func TestIsValidPrefixed(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
		want   bool
	}{
		{"wrong prefix", "req_01ARZ3NDEKTSV4RRFFQ69G5FAV", "sess", false},
		{"no ulid", "sess_nope", "sess", false},
		{"valid", "sess_01ARZ3NDEKTSV4RRFFQ69G5FAV", "sess", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPrefixed(tt.id, tt.prefix); got != tt.want {
				t.Errorf("IsValidPrefixed(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewEventID().String())
	if err != nil {
		t.Fatalf("Timestamp() error = %v", err)
	}
	if ts.Before(before) {
		t.Errorf("timestamp %v should be after %v", ts, before)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := gen.GenerateString()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 800 {
		t.Errorf("expected 800 unique IDs, got %d", len(seen))
	}
}
