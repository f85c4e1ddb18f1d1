// Package assist asks an OpenAI compatible chat completion endpoint for a SQL
// statement that answers a plain-language prompt.
package assist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sqlpane/sqlpane/internal/config"
)

const systemPrompt = "You write SQL for a database client. " +
	"Answer with exactly one SQL statement that fulfils the request. " +
	"Return ONLY SQL. No markdown, no explanation, no comments."

type Request struct {
	Prompt string   `json:"prompt"`
	Tables []string `json:"tables,omitempty"`
}

type Suggestion struct {
	SQL   string `json:"sql"`
	Model string `json:"model"`
}

type Suggester interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func OptionsFromConfig(cfg config.AIConfig) Options {
	return Options{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.Timeout}
}

type Assistant struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func New(opts Options) (*Assistant, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Assistant{
		endpoint: completionsURL(opts.BaseURL),
		apiKey:   strings.TrimSpace(opts.APIKey),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// completionsURL appends chat/completions to base whether or not it ends in
// a slash.
func completionsURL(base string) string {
	base = strings.TrimSpace(base)
	if strings.HasSuffix(base, "/") {
		return base + "chat/completions"
	}
	return base + "/chat/completions"
}

func (a *Assistant) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Suggestion{}, fmt.Errorf("prompt is required")
	}
	body, err := json.Marshal(chatPayload(a.model, req))
	if err != nil {
		return Suggestion{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Suggestion{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Suggestion{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Suggestion{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Suggestion{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Suggestion{}, fmt.Errorf("empty chat completion choices")
	}

	sqlText := stripMarkdownSQL(parsed.Choices[0].Message.Content)
	if sqlText == "" {
		return Suggestion{}, fmt.Errorf("model returned empty SQL")
	}
	return Suggestion{SQL: sqlText, Model: a.model}, nil
}

func chatPayload(model string, req Request) map[string]any {
	user := strings.TrimSpace(req.Prompt)
	if len(req.Tables) > 0 {
		user = fmt.Sprintf("Available tables: %s\n\n%s", strings.Join(req.Tables, ", "), user)
	}
	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": user},
		},
	}
}

func stripMarkdownSQL(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}
