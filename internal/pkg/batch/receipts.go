package batch

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/postgres"
	"github.com/airenas/supaquery/internal/pkg/utils"
)

type (
	// URLProvider resolves public file links
	URLProvider interface {
		PublicURL(ctx context.Context, name string) (string, error)
	}

	// AmountExtractor reads a total from a receipt image
	AmountExtractor interface {
		ExtractTotal(ctx context.Context, imageURL string) (float64, error)
	}

	// ReceiptDB saves receipt amounts
	ReceiptDB interface {
		UpdateReceipt(ctx context.Context, id int64, amount float64, imageURL string) (int64, error)
		UpdateAmount(ctx context.Context, id int64, amount float64) (int64, error)
		UpdateAmountByImage(ctx context.Context, imageURL string, amount float64) (int64, error)
	}
)

// Receipts processes receipt images into refund request amounts
type Receipts struct {
	urls      URLProvider
	extractor AmountExtractor
	db        ReceiptDB
	cfg       *Config
}

// NewReceipts creates receipt processor
func NewReceipts(urls URLProvider, extractor AmountExtractor, db ReceiptDB, cfg *Config) (*Receipts, error) {
	if urls == nil {
		return nil, fmt.Errorf("no url provider")
	}
	if extractor == nil {
		return nil, fmt.Errorf("no extractor")
	}
	if db == nil {
		return nil, fmt.Errorf("no db")
	}
	return &Receipts{urls: urls, extractor: extractor, db: db, cfg: cfg}, nil
}

var fileIDRegexp = regexp.MustCompile(`refund_req(\d+)\.png`)

// Process handles files one by one, a failed file does not stop the batch
func (r *Receipts) Process(ctx context.Context, files []string, pf func(Progress)) *Report[api.ReceiptResult] {
	goapp.Log.Info().Int("files", len(files)).Msg("processing receipts")
	return Run(ctx, files, r.cfg, &Job[string, api.ReceiptResult]{
		Work: r.process,
		Failed: func(file string, err error) api.ReceiptResult {
			return api.ReceiptResult{FileName: file, Error: err.Error()}
		},
		Progress: pf,
	})
}

func (r *Receipts) process(ctx context.Context, file string) (api.ReceiptResult, error) {
	res := api.ReceiptResult{FileName: file}
	url, err := r.urls.PublicURL(ctx, file)
	if err != nil {
		return res, fmt.Errorf("can't get url: %w", err)
	}
	amount, err := r.extractor.ExtractTotal(ctx, url)
	if err != nil {
		return res, err
	}
	goapp.Log.Info().Str("file", file).Float64("amount", amount).Msg("extracted")
	id, ok := FileID(file)
	if !ok {
		n, err := r.db.UpdateAmountByImage(ctx, url, amount)
		if err != nil {
			return res, err
		}
		goapp.Log.Info().Str("file", file).Int64("rows", n).Msg("updated by image url")
	} else {
		n, err := r.db.UpdateReceipt(ctx, id, amount, url)
		if err != nil {
			if !postgres.IsUniqueViolation(err) {
				return res, err
			}
			goapp.Log.Warn().Str("file", file).Msg("duplicate image url, updating amount only")
			if n, err = r.db.UpdateAmount(ctx, id, amount); err != nil {
				return res, err
			}
		}
		if n == 0 {
			return res, utils.NewErrDatabase(fmt.Sprintf("no refund request %d", id), nil)
		}
		res.FileID = &id
	}
	res.Success = true
	res.Amount = amount
	return res, nil
}

// FileID extracts the record id from a refund_reqN.png name
func FileID(file string) (int64, bool) {
	m := fileIDRegexp.FindStringSubmatch(file)
	if len(m) < 2 {
		return 0, false
	}
	res, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return res, true
}
