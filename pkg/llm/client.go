// Package llm calls the language model service that extracts ICSR data,
// drafts follow-up questions and adapts outreach messages. Every call forces a
// single tool invocation and decodes its arguments.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safetyflow/icsr-triage/pkg/common/config"
	"github.com/safetyflow/icsr-triage/pkg/common/logger"
	"github.com/safetyflow/icsr-triage/pkg/gateway/httpclient"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMalformedResponse means the service answered 2xx without a usable
	// tool call.
	ErrMalformedResponse = errors.New("invalid AI response format")
	ErrNotConfigured     = errors.New("LLM API key is not configured")
)

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	switch e.Code {
	case http.StatusTooManyRequests:
		return "Rate limit exceeded. Please try again later."
	case http.StatusPaymentRequired:
		return "AI credits exhausted. Please add credits to continue."
	default:
		return fmt.Sprintf("AI gateway error: %d", e.Code)
	}
}

func (e *StatusError) StatusCode() int { return e.Code }

type Client struct {
	http      *http.Client
	baseURL   string
	model     string
	attempts  int
	baseDelay time.Duration
	enabled   bool
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		http:      httpclient.NewWithBearer(cfg.LLMTimeout, cfg.LLMAPIKey),
		baseURL:   strings.TrimRight(cfg.LLMBaseURL, "/"),
		model:     cfg.LLMModelName,
		attempts:  cfg.LLMRetryAttempts,
		baseDelay: 250 * time.Millisecond,
		enabled:   cfg.LLMAPIKey != "",
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatRequest struct {
	Model      string     `json:"model"`
	Messages   []message  `json:"messages"`
	Tools      []tool     `json:"tools"`
	ToolChoice toolChoice `json:"tool_choice"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// callTool sends one chat completion that must answer with fn and decodes the
// tool arguments into out.
func (c *Client) callTool(ctx context.Context, system, user string, fn toolFunction, out interface{}) error {
	if !c.enabled {
		return ErrNotConfigured
	}

	req := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Tools: []tool{{Type: "function", Function: fn}},
	}
	req.ToolChoice.Type = "function"
	req.ToolChoice.Function.Name = fn.Name

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", fn.Name, err)
	}

	start := time.Now()
	var args string
	err = httpclient.Retry(ctx, c.attempts, c.baseDelay, httpclient.IsRetriable, func() error {
		var callErr error
		args, callErr = c.post(ctx, payload)
		return callErr
	})

	entry := logger.Log.WithFields(logrus.Fields{
		"tool":        fn.Name,
		"model":       c.model,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("LLM call failed")
		return err
	}

	if err := json.Unmarshal([]byte(args), out); err != nil {
		entry.WithError(err).Warn("LLM tool arguments did not decode")
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	entry.Debug("LLM call completed")
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.ToolCalls) == 0 {
		return "", ErrMalformedResponse
	}
	args := parsed.Choices[0].Message.ToolCalls[0].Function.Arguments
	if strings.TrimSpace(args) == "" {
		return "", ErrMalformedResponse
	}
	return args, nil
}

// schema helpers for tool parameters

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	out := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func str(description string) map[string]interface{} {
	out := map[string]interface{}{"type": "string"}
	if description != "" {
		out["description"] = description
	}
	return out
}

func enum(values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values}
}

func array(items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": items}
}
