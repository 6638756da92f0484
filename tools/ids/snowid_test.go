package ids

import (
	"sync"
	"testing"
)

func TestGenerateUniqueConcurrent(t *testing.T) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				id := Generate()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 4000 {
		t.Errorf("got %d ids, want 4000", len(seen))
	}
}

func TestNodeIDEmbedded(t *testing.T) {
	SetNodeID(42)
	defer SetNodeID(1)
	if got := (Generate() >> 12) & 0x3FF; got != 42 {
		t.Errorf("node id = %d, want 42", got)
	}
}
