package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockClientSequence(t *testing.T) {
	client := NewMockClient(
		MockResponse{Content: "first", StopReason: StopEndTurn},
		MockResponse{Content: "second", StopReason: StopEndTurn},
	)

	resp, err := client.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat returned unexpected error: %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("first response = %q", resp.Content)
	}

	resp, _ = client.Chat(context.Background(), ChatRequest{})
	if resp.Content != "second" {
		t.Errorf("second response = %q", resp.Content)
	}

	// Exhausted sequences repeat the last response.
	resp, _ = client.Chat(context.Background(), ChatRequest{})
	if resp.Content != "second" {
		t.Errorf("repeated response = %q, want the last configured one", resp.Content)
	}

	if calls := client.Calls(); len(calls) != 3 {
		t.Errorf("recorded %d calls, want 3", len(calls))
	}
}

func TestMockClientError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	client := NewMockClient(MockResponse{Error: wantErr})

	if _, err := client.Chat(context.Background(), ChatRequest{}); !errors.Is(err, wantErr) {
		t.Fatalf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestMockClientUnconfigured(t *testing.T) {
	client := NewMockClient()
	if _, err := client.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("Chat with no configured responses should return an error")
	}
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	u.Add(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	u.Add(Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})

	if u.PromptTokens != 11 || u.CompletionTokens != 7 || u.TotalTokens != 18 {
		t.Errorf("Usage = %+v, want accumulated totals", u)
	}
}
