package inform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jordan-wright/email"
	"github.com/spf13/viper"
)

// FakeEmailSender posts the email as json to an http url instead of sending it
type FakeEmailSender struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
}

// NewFakeEmailSender initiates email sender
func NewFakeEmailSender(c *viper.Viper) (*FakeEmailSender, error) {
	r := FakeEmailSender{httpClient: &http.Client{}, timeout: time.Second * 5}
	r.url = c.GetString("smtp.fakeUrl")
	if r.url == "" {
		return nil, fmt.Errorf("no URL")
	}
	if d := c.GetDuration("smtp.timeout"); d > 0 {
		r.timeout = d
	}
	goapp.Log.Info().Str("URL", r.url).Msg("Fake sender")
	return &r, nil
}

type fakeEmail struct {
	To      []string `json:"to"`
	From    string   `json:"from"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// Send posts email
func (s *FakeEmailSender) Send(e *email.Email) error {
	body, err := json.Marshal(fakeEmail{To: e.To, From: e.From, Subject: e.Subject, Text: string(e.Text), HTML: string(e.HTML)})
	if err != nil {
		return fmt.Errorf("can't marshal email: %w", err)
	}
	ctx, cancelF := context.WithTimeout(context.Background(), s.timeout)
	defer cancelF()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("can't prepare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	goapp.Log.Info().Str("url", req.URL.String()).Str("method", req.Method).Msg("call")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
		_ = resp.Body.Close()
	}()
	if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
		return fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
	}
	return nil
}
