package assist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestStripMarkdownSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1;\n```": "SELECT 1;",
		"```\nSELECT 2\n```":     "SELECT 2",
		"  SELECT 3  ":           "SELECT 3",
	}
	for in, want := range cases {
		if got := stripMarkdownSQL(in); got != want {
			t.Fatalf("stripMarkdownSQL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompletionsURL(t *testing.T) {
	for _, base := range []string{"https://api.example.com/v1", "https://api.example.com/v1/"} {
		if got := completionsURL(base); got != "https://api.example.com/v1/chat/completions" {
			t.Fatalf("completionsURL(%q) = %q", base, got)
		}
	}
}

func TestSuggestPostsChatCompletion(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```sql\\nSELECT count(*) FROM orders\\n```" + `"}}]}`))
	}))
	defer server.Close()

	assistant, err := New(Options{BaseURL: server.URL + "/v1/", APIKey: "secret", Model: "sql-model"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	suggestion, err := assistant.Suggest(context.Background(), Request{Prompt: "how many orders?", Tables: []string{"orders", "users"}})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if suggestion.SQL != "SELECT count(*) FROM orders" || suggestion.Model != "sql-model" {
		t.Fatalf("Suggest() = %+v", suggestion)
	}
	if captured.Model != "sql-model" || len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("payload = %+v", captured)
	}
	if !strings.Contains(captured.Messages[1].Content, "orders, users") || !strings.HasSuffix(captured.Messages[1].Content, "how many orders?") {
		t.Fatalf("user message = %q", captured.Messages[1].Content)
	}
}

func TestSuggestErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
		"no choices": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"empty sql": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
		},
		"bad json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()
			assistant, err := New(Options{BaseURL: server.URL, APIKey: "k", Model: "m"})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if _, err := assistant.Suggest(context.Background(), Request{Prompt: "list users"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewValidatesOptions(t *testing.T) {
	bad := []Options{
		{APIKey: "k", Model: "m"},
		{BaseURL: "http://x", Model: "m"},
		{BaseURL: "http://x", APIKey: "k"},
	}
	for _, opts := range bad {
		if _, err := New(opts); err == nil {
			t.Fatalf("New(%+v) expected error", opts)
		}
	}
}
