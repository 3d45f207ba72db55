package vision

import (
	"bytes"
	"context"
	"encoding/base64"
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

// Client calls Gemini generateContent endpoint
type Client struct {
	httpclient *http.Client
	url        string
	key        string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

type (
	inlineData struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	}
	part struct {
		Text       string      `json:"text,omitempty"`
		InlineData *inlineData `json:"inline_data,omitempty"`
	}
	content struct {
		Parts []part `json:"parts"`
	}
	generateRequest struct {
		Contents []content `json:"contents"`
	}
	generateResponse struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
)

// NewClient creates vision client, url is the API base, e.g. https://generativelanguage.googleapis.com/v1beta
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
	res := &Client{key: key}
	res.url = fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(url, "/"), model)
	res.httpclient = &http.Client{Transport: newTransport()}
	res.timeout = time.Second * 60
	res.backoff = newSimpleBackoff
	goapp.Log.Info().Str("url", res.url).Msg("vision client")
	return res, nil
}

// Generate sends prompt and image, returns the text of the first candidate
func (c *Client) Generate(ctx context.Context, prompt, mime string, data []byte) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt},
		{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}}}}}})
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
		req.Header.Set("x-goog-api-key", c.key)
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
		var respData generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return "", goapp.IsRetryableErr(err), fmt.Errorf("can't decode response: %w", err)
		}
		if len(respData.Candidates) == 0 {
			return "", false, fmt.Errorf("no candidates in response")
		}
		sb := strings.Builder{}
		for _, p := range respData.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		return strings.TrimSpace(sb.String()), false, nil
	}, c.backoff())
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxIdleConns = 10
	res.MaxIdleConnsPerHost = 5
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	return retry.NewBackOff(time.Second, 10*time.Second, 2)
}
