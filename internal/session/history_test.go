package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestSetSystem_OnlyOnce(t *testing.T) {
	h := NewHistory()

	if err := h.SetSystem("you are helpful"); err != nil {
		t.Fatalf("first SetSystem() = %v", err)
	}
	if err := h.SetSystem("again"); !errors.Is(err, ErrSystemAlreadySet) {
		t.Errorf("second SetSystem() = %v, want ErrSystemAlreadySet", err)
	}

	snapshot := h.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Role != ai.RoleSystem {
		t.Fatalf("snapshot = %v, want single system turn", snapshot)
	}
	if snapshot[0].Text() != "you are helpful" {
		t.Errorf("system content = %q", snapshot[0].Text())
	}
}

func TestAddUser_RequiresSystem(t *testing.T) {
	h := NewHistory()
	if err := h.AddUser("hello"); !errors.Is(err, ErrSystemNotSet) {
		t.Errorf("AddUser() = %v, want ErrSystemNotSet", err)
	}
}

func TestAddAssistant_RequiresUserTurn(t *testing.T) {
	h := NewHistory()
	if err := h.AddAssistant("answer"); !errors.Is(err, ErrSystemNotSet) {
		t.Errorf("AddAssistant() on empty = %v, want ErrSystemNotSet", err)
	}

	mustSetSystem(t, h)
	if err := h.AddAssistant("answer"); !errors.Is(err, ErrNoUserTurn) {
		t.Errorf("AddAssistant() after system = %v, want ErrNoUserTurn", err)
	}
}

func TestHistory_GrowsByPairsPerTurn(t *testing.T) {
	h := NewHistory()
	mustSetSystem(t, h)

	const turns = 5
	for i := range turns {
		if err := h.AddUser(fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("AddUser() = %v", err)
		}
		if err := h.AddAssistant(fmt.Sprintf("answer %d", i)); err != nil {
			t.Fatalf("AddAssistant() = %v", err)
		}
	}

	if got, want := h.Len(), 1+2*turns; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	h := NewHistory()
	mustSetSystem(t, h)

	snapshot := h.Snapshot()
	snapshot = append(snapshot, ai.NewUserMessage(ai.NewTextPart("injected")))
	_ = snapshot

	if h.Len() != 1 {
		t.Errorf("Len() = %d after appending to snapshot, want 1", h.Len())
	}
}

func TestSnapshot_NeverContainsSources(t *testing.T) {
	h := NewHistory()
	mustSetSystem(t, h)

	// A full turn: the orchestrator appends raw user text and the answer,
	// never the augmented message it sent to the model.
	if err := h.AddUser("what is the capital of France?"); err != nil {
		t.Fatal(err)
	}
	if err := h.AddAssistant("Paris [1]."); err != nil {
		t.Fatal(err)
	}

	for i, msg := range h.Snapshot() {
		if strings.Contains(msg.Text(), "SOURCES:") {
			t.Errorf("message %d contains SOURCES block: %q", i, msg.Text())
		}
	}
}

func mustSetSystem(t *testing.T, h *History) {
	t.Helper()
	if err := h.SetSystem("system prompt"); err != nil {
		t.Fatalf("SetSystem() = %v", err)
	}
}
