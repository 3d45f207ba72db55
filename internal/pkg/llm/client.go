package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/retry"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
)

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a chat completion call
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls an OpenAI compatible chat completions endpoint
type Client struct {
	httpclient *http.Client
	url        string
	key        string
	model      string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates chat client, url is the API base, e.g. https://api.groq.com/openai/v1
func NewClient(url, key, model string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("no url")
	}
	if key == "" {
		return nil, fmt.Errorf("no key")
	}
	if model == "" {
		return nil, fmt.Errorf("no model")
	}
	res := &Client{url: strings.TrimSuffix(url, "/") + "/chat/completions", key: key, model: model}
	res.httpclient = &http.Client{Transport: newTransport()}
	res.timeout = time.Second * 60
	res.backoff = newSimpleBackoff
	goapp.Log.Info().Str("url", res.url).Str("model", model).Msg("llm client")
	return res, nil
}

// Complete returns the content of the first choice.
// Only connection failures are retried here, HTTP status errors are left for the caller.
func (c *Client) Complete(ctx context.Context, in *Request) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: in.Messages, Temperature: in.Temperature,
		MaxTokens: in.MaxTokens})
	if err != nil {
		return "", fmt.Errorf("can't marshal request: %w", err)
	}
	return goapp.InvokeWithBackoff(ctx, func() (string, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, c.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return "", false, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.key)
		resp, err := c.httpclient.Do(req)
		if err != nil {
			return "", goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
			return "", false, &utils.ErrHTTP{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
		var respData chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return "", goapp.IsRetryableErr(err), fmt.Errorf("can't decode response: %w", err)
		}
		if len(respData.Choices) == 0 {
			return "", false, fmt.Errorf("no choices in response")
		}
		return strings.TrimSpace(respData.Choices[0].Message.Content), false, nil
	}, c.backoff())
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxIdleConns = 20
	res.MaxIdleConnsPerHost = 10
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	return retry.NewBackOff(time.Second, 10*time.Second, 2)
}
