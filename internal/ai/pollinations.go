package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nubi/pkg/retry"
)

type PollinationsProvider struct {
	client  *http.Client
	limiter *retry.AdaptiveLimiter
}

func NewPollinationsProvider() *PollinationsProvider {
	return &PollinationsProvider{
		client: &http.Client{
			Timeout: 25 * time.Second,
		},
		limiter: retry.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

type httpError struct {
	code int
	body string
}

func (e *httpError) Error() string   { return fmt.Sprintf("pollinations http %d: %s", e.code, e.body) }
func (e *httpError) StatusCode() int { return e.code }

func (p *PollinationsProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	var reply string
	err := retry.Do(ctx, func() error {
		out, err := p.generateOnce(ctx, messages)
		if err != nil {
			return err
		}
		reply = out
		return nil
	}, p.limiter, retry.DefaultConfig())
	return reply, err
}

func (p *PollinationsProvider) generateOnce(ctx context.Context, messages []Message) (string, error) {
	payload := map[string]interface{}{
		"model":       "openai",
		"messages":    messages,
		"temperature": 1,
		"private":     true,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", &retry.FatalError{Err: err}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		"https://text.pollinations.ai/openai",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", &retry.FatalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpError{code: resp.StatusCode, body: truncate(body)}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("pollinations returned html")
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("pollinations empty choices")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("pollinations returned garbage")
	}

	return reply, nil
}
