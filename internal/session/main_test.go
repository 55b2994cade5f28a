package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHistory_ConcurrentSnapshots(t *testing.T) {
	h := NewHistory()
	mustSetSystem(t, h)

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Readers snapshot continuously while a single writer appends turns.
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					snapshot := h.Snapshot()
					// A snapshot is always a consistent prefix: system
					// first, then complete user/assistant pairs or a
					// trailing user turn.
					if len(snapshot) > 0 && snapshot[0].Role != ai.RoleSystem {
						t.Error("snapshot lost the system turn")
						return
					}
					_ = h.Len()
				}
			}
		}()
	}

	for i := range 50 {
		if err := h.AddUser(fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
		if err := h.AddAssistant(fmt.Sprintf("answer %d", i)); err != nil {
			t.Fatalf("AddAssistant: %v", err)
		}
	}
	close(done)
	wg.Wait()

	if got, want := h.Len(), 1+2*50; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}
