package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/fetcher"
	"github.com/airenas/supaquery/internal/pkg/retry"
	"github.com/airenas/supaquery/internal/pkg/utils"
)

const totalPrompt = "Please analyze this receipt image and extract ONLY the total amount. " +
	"Return just the numeric value (e.g., 125.99) with no additional text, currency symbols, or explanations. " +
	"Look for words like 'Total', 'Amount Due', 'Balance', or similar indicators."

// Loader loads image bytes
type Loader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// Model is a vision capable model
type Model interface {
	Generate(ctx context.Context, prompt, mime string, data []byte) (string, error)
}

// Extractor reads receipt totals
type Extractor struct {
	loader Loader
	model  Model
	opts   func() *retry.Opts
}

// NewExtractor creates extractor
func NewExtractor(loader Loader, model Model) (*Extractor, error) {
	if loader == nil {
		return nil, fmt.Errorf("no loader")
	}
	if model == nil {
		return nil, fmt.Errorf("no model")
	}
	return &Extractor{loader: loader, model: model, opts: retry.DefaultOpts}, nil
}

// ExtractTotal returns the total amount of a receipt image.
// Fails with utils.ErrRateLimitExceeded or utils.ErrExtractionFailed.
func (e *Extractor) ExtractTotal(ctx context.Context, imageURL string) (float64, error) {
	res, err := retry.Do(ctx, func(ctx context.Context) (float64, error) {
		data, err := e.loader.Load(ctx, imageURL)
		if err != nil {
			return 0, fmt.Errorf("can't load image: %w", err)
		}
		mime, err := fetcher.DetectImage(data)
		if err != nil {
			return 0, err
		}
		txt, err := e.model.Generate(ctx, totalPrompt, mime, data)
		if err != nil {
			return 0, fmt.Errorf("can't generate: %w", err)
		}
		goapp.Log.Debug().Str("text", goapp.Sanitize(txt)).Msg("vision response")
		return ParseAmount(txt)
	}, e.opts().WithName("vision"))
	if err != nil {
		if errors.Is(err, utils.ErrRateLimitExceeded) || errors.Is(err, utils.ErrExtractionFailed) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", utils.ErrExtractionFailed, err)
	}
	return res, nil
}

var amountRegexp = regexp.MustCompile(`\d+(\.\d+)?`)

// ParseAmount takes the first number in text
func ParseAmount(text string) (float64, error) {
	if m := amountRegexp.FindString(text); m != "" {
		if res, err := strconv.ParseFloat(m, 64); err == nil {
			return res, nil
		}
	}
	if res, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil && !math.IsNaN(res) && !math.IsInf(res, 0) {
		return res, nil
	}
	return 0, utils.ErrExtractionFailed
}
