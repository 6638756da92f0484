package decode

import (
	"testing"
	"time"
)

type sample struct {
	Name     string        `json:"name"`
	Limit    uint64        `json:"limit"`
	Interval time.Duration `json:"interval"`
	Brokers  []string      `json:"brokers"`
	Nested   struct {
		Rate float64 `json:"rate"`
	} `json:"nested"`
}

func TestIntoKeepsDefaults(t *testing.T) {
	out := sample{Name: "default", Limit: 50}
	err := Into(map[string]any{
		"interval": "15ms",
		"brokers":  "a:9092,b:9092",
		"nested":   map[string]any{"rate": 0.25},
	}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != "default" || out.Limit != 50 {
		t.Errorf("defaults overwritten: %+v", out)
	}
	if out.Interval != 15*time.Millisecond {
		t.Errorf("interval = %v", out.Interval)
	}
	if len(out.Brokers) != 2 || out.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", out.Brokers)
	}
	if out.Nested.Rate != 0.25 {
		t.Errorf("rate = %v", out.Nested.Rate)
	}
}

func TestIntoWeakTyping(t *testing.T) {
	got, err := Map[sample](map[string]any{"limit": "7", "name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Limit != 7 {
		t.Errorf("limit = %d", got.Limit)
	}
}

func TestIntoRejectsUnknownKeys(t *testing.T) {
	if _, err := Map[sample](map[string]any{"nmae": "typo"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestReadString(t *testing.T) {
	m := map[string]any{"a": "b", "n": 1}
	if v, err := ReadString(m, "a"); err != nil || v != "b" {
		t.Errorf("ReadString(a) = %q, %v", v, err)
	}
	if _, err := ReadString(m, "n"); err == nil {
		t.Error("expected type error")
	}
	if _, err := ReadString(m, "missing"); err == nil {
		t.Error("expected missing error")
	}
}
