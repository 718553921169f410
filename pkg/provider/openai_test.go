package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIClient_Call_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization header missing bearer token")
		}
		var decoded openAIChatRequest
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if decoded.Model != "gpt-4o" {
			t.Errorf("model = %s, want gpt-4o", decoded.Model)
		}
		resp := openAIChatResponse{Model: "gpt-4o"}
		resp.Choices = []struct {
			Message openAIChatMessage `json:"message"`
		}{{Message: openAIChatMessage{Role: "assistant", Content: "here is the plan"}}}
		resp.Usage.PromptTokens = 10
		resp.Usage.CompletionTokens = 20
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key").WithEndpoint(server.URL)
	resp, err := client.Call(context.Background(), Request{Model: "gpt-4o", MaxTokens: 100, UserPrompt: "plan my shift"})
	if err != nil {
		t.Fatalf("Call() err = %v", err)
	}
	if resp.Text != "here is the plan" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.OutputTokens != 20 {
		t.Errorf("OutputTokens = %d, want 20", resp.Usage.OutputTokens)
	}
	if !client.IsHealthy() {
		t.Error("client should report healthy after a successful call")
	}
}

func TestOpenAIClient_Call_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key").WithEndpoint(server.URL)
	_, err := client.Call(context.Background(), Request{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected an error on 500 status")
	}
	if status := HTTPStatusOf(err); status != http.StatusInternalServerError {
		t.Errorf("HTTPStatusOf(err) = %d, want %d", status, http.StatusInternalServerError)
	}
}

func TestOpenAIClient_Call_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key").WithEndpoint(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, Request{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected an error on context deadline")
	}
}
