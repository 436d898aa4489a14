package db

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewPoolStats(t *testing.T) {
	stats := newPoolStats(10, 5, 5, 20, 100, 1500*time.Millisecond)

	if stats.TotalConns != 10 || stats.IdleConns != 5 || stats.AcquiredConns != 5 {
		t.Errorf("unexpected connection counts %+v", stats)
	}
	if stats.AcquireDuration != "1.5s" {
		t.Errorf("expected AcquireDuration '1.5s', got %q", stats.AcquireDuration)
	}
	if stats.Saturated {
		t.Error("pool with free capacity must not be saturated")
	}
}

func TestNewPoolStats_Saturated(t *testing.T) {
	stats := newPoolStats(20, 0, 20, 20, 500, time.Second)
	if !stats.Saturated {
		t.Error("expected saturated when every connection is acquired")
	}
}

func TestPoolStats_JSON(t *testing.T) {
	data, err := json.Marshal(newPoolStats(1, 1, 0, 10, 50, 250*time.Millisecond))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "saturated"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}
