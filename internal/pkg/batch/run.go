package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/retry"
)

// Config controls pacing of a batch
type Config struct {
	Delay      time.Duration // between items
	GroupSize  int           // 0 - no groups
	GroupPause time.Duration // between groups, instead of Delay
	sleep      func(context.Context, time.Duration) error
}

// DefaultConfig returns the pacing used for upstream model calls
func DefaultConfig() *Config {
	return &Config{Delay: 2 * time.Second}
}

// Progress of a running batch
type Progress struct {
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Elapsed time.Duration `json:"elapsed"`
	ETA     time.Duration `json:"eta"`
}

// Report is the aggregate of a finished batch
type Report[R any] struct {
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	Total   int            `json:"total"`
	Errors  map[string]int `json:"errors,omitempty"`
	Results []R            `json:"results"`
}

// Job describes how to process one item
type Job[T, R any] struct {
	Work     func(context.Context, T) (R, error)
	Failed   func(T, error) R
	Progress func(Progress)
}

// Run processes items sequentially in the input order.
// A failing item is recorded and the batch continues with the next one.
// On context cancel the rest of items are counted as skipped.
func Run[T, R any](ctx context.Context, items []T, cfg *Config, job *Job[T, R]) *Report[R] {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	sleep := cfg.sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	res := &Report[R]{Total: len(items), Results: make([]R, 0, len(items))}
	errs := []string{}
	start := time.Now()
	for i, item := range items {
		if i > 0 {
			if err := sleep(ctx, pause(cfg, i)); err != nil {
				res.Skipped = len(items) - i
				goapp.Log.Warn().Int("skipped", res.Skipped).Msg("batch canceled")
				break
			}
		}
		if ctx.Err() != nil {
			res.Skipped = len(items) - i
			goapp.Log.Warn().Int("skipped", res.Skipped).Msg("batch canceled")
			break
		}
		r, err := invoke(ctx, item, job.Work)
		if err != nil {
			goapp.Log.Warn().Err(err).Int("item", i+1).Msg("item failed")
			res.Failed++
			errs = append(errs, err.Error())
			if job.Failed != nil {
				r = job.Failed(item, err)
			}
		} else {
			res.Success++
		}
		res.Results = append(res.Results, r)
		if job.Progress != nil {
			job.Progress(progress(i+1, len(items), time.Since(start)))
		}
	}
	res.Errors = GroupErrors(errs)
	goapp.Log.Info().Int("success", res.Success).Int("failed", res.Failed).Int("skipped", res.Skipped).
		Dur("took", time.Since(start)).Msg("batch done")
	return res
}

func invoke[T, R any](ctx context.Context, item T, work func(context.Context, T) (R, error)) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return work(ctx, item)
}

func pause(cfg *Config, i int) time.Duration {
	if cfg.GroupSize > 0 && i%cfg.GroupSize == 0 {
		return cfg.GroupPause
	}
	return cfg.Delay
}

func progress(done, total int, elapsed time.Duration) Progress {
	res := Progress{Done: done, Total: total, Elapsed: elapsed}
	if done > 0 && done < total {
		res.ETA = time.Duration(float64(elapsed) / float64(done) * float64(total-done))
	}
	goapp.Log.Info().Int("done", done).Int("total", total).Dur("eta", res.ETA).Msg("progress")
	return res
}
