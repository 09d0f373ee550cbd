package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIBackendGenerate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header '%s'", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "thought: ok\nmessage: hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend("test-key", Options{BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIBackend: %v", err)
	}

	resp, err := b.Generate(context.Background(), &Request{
		Model:  "gpt-4o",
		System: "be a listener",
		Messages: []Message{
			{Role: RoleUser, Parts: []Part{TextPart("hello "), HandlePart(Handle{URI: "x"}), TextPart("there")}},
			{Role: RoleModel, Parts: []Part{TextPart("ready")}},
			{Role: RoleUser, Parts: []Part{TextPart("turn 1")}},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.Text != "thought: ok\nmessage: hi" {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.Usage.InputTextTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(got.Messages))
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, m := range got.Messages {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d: expected role '%s', got '%s'", i, wantRoles[i], m.Role)
		}
	}
	if got.Messages[1].Content != "hello there" {
		t.Errorf("handle parts must be dropped from text, got %q", got.Messages[1].Content)
	}
}

func TestOpenAIBackendUploadUnsupported(t *testing.T) {
	b, err := NewOpenAIBackend("k", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Upload(context.Background(), "a.mp3", ModalityAudio); !errors.Is(err, ErrUploadUnsupported) {
		t.Errorf("expected ErrUploadUnsupported, got %v", err)
	}
}

func TestNewOpenAIBackendRequiresKey(t *testing.T) {
	if _, err := NewOpenAIBackend("", Options{}); err == nil {
		t.Error("expected error for empty key")
	}
}
