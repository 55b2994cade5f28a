package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raggydev/raggy/internal/chat"
)

type fakeTurner struct {
	results map[string]*chat.TurnResult
	err     error
	inputs  []string
}

func (f *fakeTurner) Turn(_ context.Context, userText string) (*chat.TurnResult, error) {
	f.inputs = append(f.inputs, userText)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[userText]; ok {
		return r, nil
	}
	return &chat.TurnResult{Answer: "default answer"}, nil
}

func TestChatLoopAnswersAndExits(t *testing.T) {
	f := &fakeTurner{results: map[string]*chat.TurnResult{
		"what is go?": {
			Answer:            "Go is a programming language.",
			PassageCount:      3,
			RetrievalLatency:  40 * time.Millisecond,
			GenerationLatency: 900 * time.Millisecond,
			Usage:             &chat.Usage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160},
		},
	}}
	in := strings.NewReader("what is go?\nexit\n")
	var out bytes.Buffer

	if err := chatLoop(context.Background(), f, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "You > ") {
		t.Error("prompt missing from output")
	}
	if !strings.Contains(got, "Go is a programming language.") {
		t.Error("answer missing from output")
	}
	if !strings.Contains(got, "[3 passages | retrieval 40ms | generation 900ms | 160 tokens (120 prompt, 40 completion)]") {
		t.Errorf("stats trailer missing or wrong:\n%s", got)
	}
	if !strings.Contains(got, "Goodbye!") {
		t.Error("exit message missing")
	}
	if len(f.inputs) != 1 {
		t.Errorf("turner called %d times, want 1", len(f.inputs))
	}
}

func TestChatLoopSkipsBlankInput(t *testing.T) {
	f := &fakeTurner{}
	in := strings.NewReader("\n   \nquit\n")
	var out bytes.Buffer

	if err := chatLoop(context.Background(), f, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(f.inputs) != 0 {
		t.Errorf("turner called %d times for blank input, want 0", len(f.inputs))
	}
	// Each blank line still yields a fresh prompt.
	if got := strings.Count(out.String(), "You > "); got != 3 {
		t.Errorf("prompt shown %d times, want 3", got)
	}
}

func TestChatLoopContinuesAfterError(t *testing.T) {
	f := &fakeTurner{err: errors.New("backend down")}
	in := strings.NewReader("first\nsecond\nexit\n")
	var out bytes.Buffer

	if err := chatLoop(context.Background(), f, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(f.inputs) != 2 {
		t.Errorf("turner called %d times, want 2 (loop must survive errors)", len(f.inputs))
	}
	if !strings.Contains(out.String(), "backend down") {
		t.Error("error message missing from output")
	}
}

func TestChatLoopEOF(t *testing.T) {
	f := &fakeTurner{}
	in := strings.NewReader("") // immediate EOF (Ctrl+D)
	var out bytes.Buffer

	if err := chatLoop(context.Background(), f, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Error("EOF should end the session cleanly")
	}
}

func TestTurnInfoWithoutUsage(t *testing.T) {
	got := turnInfo(&chat.TurnResult{
		PassageCount:     0,
		RetrievalLatency: 12 * time.Millisecond,
	})
	want := "[0 passages | retrieval 12ms | generation 0ms]"
	if got != want {
		t.Errorf("turnInfo = %q, want %q", got, want)
	}
}
