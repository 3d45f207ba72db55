package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"go.uber.org/multierr"
)

// Fetcher downloads remote resources into a scratch directory
type Fetcher struct {
	httpclient *http.Client
	dir        string
	timeout    time.Duration
	maxSize    int64
}

// NewFetcher creates a fetcher, dir is created if missing
func NewFetcher(dir string, timeout time.Duration) (*Fetcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("no dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("can't create dir '%s': %w", dir, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	goapp.Log.Info().Str("dir", dir).Dur("timeout", timeout).Msg("fetcher")
	return &Fetcher{httpclient: &http.Client{Transport: newTransport()}, dir: dir, timeout: timeout,
		maxSize: 50 << 20}, nil
}

var (
	schemeFix  = regexp.MustCompile(`^(https?):/+`)
	slashesFix = regexp.MustCompile(`([^:])//+`)
)

// NormalizeURL collapses repeated slashes after the host part and restores "://"
func NormalizeURL(s string) string {
	res := schemeFix.ReplaceAllString(strings.TrimSpace(s), "${1}://")
	idx := strings.Index(res, "://")
	if idx < 0 {
		return slashesFix.ReplaceAllString(res, "${1}/")
	}
	return res[:idx+3] + slashesFix.ReplaceAllString(res[idx+3:], "${1}/")
}

// Download saves URL content to <dir>/<name> and returns the path.
// An old file with the same name is removed first, a partial file is removed on failure.
func (f *Fetcher) Download(ctx context.Context, urlStr, name string) (string, error) {
	fn, err := utils.MakeValidateFileName("", name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(f.dir, fn)
	if err := removeIfExists(path); err != nil {
		return "", fmt.Errorf("can't remove old file: %w", err)
	}
	u := NormalizeURL(urlStr)
	goapp.Log.Info().Str("url", u).Str("file", path).Msg("download")
	if err := f.download(ctx, u, path); err != nil {
		return "", multierr.Append(err, removeIfExists(path))
	}
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, u, path string) error {
	ctx, cancelF := context.WithTimeout(ctx, f.timeout)
	defer cancelF()
	resp, err := f.get(ctx, u)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("can't create file: %w", err)
	}
	n, err := io.Copy(file, io.LimitReader(resp.Body, f.maxSize+1))
	cErr := file.Close()
	if err != nil {
		return wrapNetErr(fmt.Errorf("can't write file: %w", err))
	}
	if cErr != nil {
		return fmt.Errorf("can't close file: %w", cErr)
	}
	if n > f.maxSize {
		return fmt.Errorf("%w: over %d bytes", utils.ErrTooLarge, f.maxSize)
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("can't stat file: %w", err)
	}
	if st.Size() == 0 {
		return utils.ErrEmptyResponse
	}
	goapp.Log.Info().Str("file", path).Int64("size", st.Size()).Msg("downloaded")
	return nil
}

// Load returns URL content in memory
func (f *Fetcher) Load(ctx context.Context, urlStr string) ([]byte, error) {
	ctx, cancelF := context.WithTimeout(ctx, f.timeout)
	defer cancelF()
	u := NormalizeURL(urlStr)
	goapp.Log.Info().Str("url", u).Msg("load")
	resp, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	res, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, wrapNetErr(fmt.Errorf("can't read body: %w", err))
	}
	if int64(len(res)) > f.maxSize {
		return nil, fmt.Errorf("%w: over %d bytes", utils.ErrTooLarge, f.maxSize)
	}
	if len(res) == 0 {
		return nil, utils.ErrEmptyResponse
	}
	return res, nil
}

// Remove deletes a file downloaded before, missing file is not an error
func (f *Fetcher) Remove(path string) error {
	return removeIfExists(path)
}

func (f *Fetcher) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("can't prepare request: %w", err)
	}
	resp, err := f.httpclient.Do(req)
	if err != nil {
		return nil, wrapNetErr(fmt.Errorf("can't call: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		closeBody(resp)
		return nil, &utils.ErrHTTP{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func wrapNetErr(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return utils.NewErrNetworkTimeout(err)
	}
	return err
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
	_ = resp.Body.Close()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("can't remove '%s': %w", path, err)
	}
	return nil
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxIdleConns = 10
	res.MaxIdleConnsPerHost = 5
	res.IdleConnTimeout = 90 * time.Second
	return res
}
