package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/retry"
	tapi "github.com/airenas/supaquery/internal/pkg/transcriber/api"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
)

// Client comunicates with speech-to-text service
type Client struct {
	httpclient    *http.Client
	url           string
	key           string
	model         string
	uploadTimeout time.Duration
	backoff       func() backoff.BackOff
}

// NewClient creates a transcriber client, url is the API base, e.g. https://api.openai.com/v1
func NewClient(url, key, model string) (*Client, error) {
	res := Client{}
	if url == "" {
		return nil, fmt.Errorf("no url")
	}
	if key == "" {
		return nil, fmt.Errorf("no key")
	}
	if model == "" {
		return nil, fmt.Errorf("no model")
	}
	res.url = strings.TrimSuffix(url, "/") + "/audio/transcriptions"
	res.key = key
	res.model = model
	res.uploadTimeout = time.Minute * 5
	res.httpclient = asrHTTPClient()
	res.backoff = newSimpleBackoff
	goapp.Log.Info().Str("url", res.url).Str("model", model).Msg("transcriber client")
	return &res, nil
}

// Transcribe sends local audio file and returns recognized text
func (sp *Client) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("can't open audio: %w", err)
	}
	defer f.Close()
	res, err := sp.Upload(ctx, &tapi.UploadData{
		Params: map[string]string{tapi.PrmModel: sp.model, tapi.PrmResponseFormat: "json"},
		Files:  map[string]io.Reader{filepath.Base(path): f}})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Upload posts multipart form with audio to the service
func (sp *Client) Upload(ctx context.Context, audio *tapi.UploadData) (*tapi.Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, r := range audio.Files {
		part, err := writer.CreateFormFile(tapi.PrmFile, name)
		if err != nil {
			return nil, fmt.Errorf("can't add file to request: %w", err)
		}
		if _, err = io.Copy(part, r); err != nil {
			return nil, fmt.Errorf("can't add file content to request: %w", err)
		}
	}
	for k, v := range audio.Params {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("can't add param: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("can't close multipart: %w", err)
	}
	data := body.Bytes()

	return goapp.InvokeWithBackoff(ctx, func() (*tapi.Result, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, sp.uploadTimeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.url, bytes.NewReader(data))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+sp.key)
		goapp.Log.Info().Str("url", req.URL.String()).Str("method", req.Method).Int("size", len(data)).Msg("call")
		resp, err := sp.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
			return nil, false, &utils.ErrHTTP{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		}
		br, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't read body: %w", err)
		}
		var respData tapi.Result
		if err = json.Unmarshal(br, &respData); err != nil {
			return nil, false, fmt.Errorf("can't decode response: %w", err)
		}
		return &respData, false, nil
	}, sp.backoff())
}

func asrHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxIdleConns = 10
	res.MaxIdleConnsPerHost = 5
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	return retry.NewBackOff(2*time.Second, 10*time.Second, 2)
}
