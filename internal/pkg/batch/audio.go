package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/retry"
	"github.com/airenas/supaquery/internal/pkg/status"
	"github.com/airenas/supaquery/internal/pkg/summarizer"
	"github.com/airenas/supaquery/internal/pkg/utils"
)

type (
	// AudioDB provides refund requests with audio
	AudioDB interface {
		PendingAudio(ctx context.Context) ([]*persistence.RefundRequest, error)
		Summarized(ctx context.Context) ([]*persistence.RefundRequest, error)
		MarkStage(ctx context.Context, id int64, stage status.Stage) error
		SaveSummary(ctx context.Context, id int64, summary string, started time.Time) error
		MarkFailed(ctx context.Context, id int64, msg string) error
	}

	// Downloader saves remote files locally
	Downloader interface {
		Download(ctx context.Context, url, name string) (string, error)
		Remove(path string) error
	}

	// Transcriber converts audio to text, falls back to a placeholder text
	Transcriber interface {
		Transcribe(ctx context.Context, id int64, path string) (string, bool)
	}

	// Summarizer summarizes transcripts, falls back to a heuristic summary
	Summarizer interface {
		Summarize(ctx context.Context, transcript string) (string, bool)
	}
)

// Audio processes refund request audio into transcript and summary
type Audio struct {
	db          AudioDB
	downloader  Downloader
	transcriber Transcriber
	summarizer  Summarizer
	cfg         *Config
	retry       *retry.Opts
}

// NewAudio creates audio processor
func NewAudio(db AudioDB, downloader Downloader, transcriber Transcriber, summarizer Summarizer, cfg *Config) (*Audio, error) {
	if db == nil {
		return nil, fmt.Errorf("no db")
	}
	if downloader == nil {
		return nil, fmt.Errorf("no downloader")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("no transcriber")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("no summarizer")
	}
	return &Audio{db: db, downloader: downloader, transcriber: transcriber, summarizer: summarizer, cfg: cfg,
		retry: retry.DefaultOpts().WithName("audio download")}, nil
}

// ProcessPending transcribes and summarizes every record with audio but without summary.
// Records with a summary are never selected, so repeated calls do not touch them.
func (a *Audio) ProcessPending(ctx context.Context, pf func(Progress)) (*Report[api.AudioResult], error) {
	recs, err := a.db.PendingAudio(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load pending records: %w", err)
	}
	goapp.Log.Info().Int("records", len(recs)).Msg("processing audio")
	return Run(ctx, recs, a.cfg, &Job[*persistence.RefundRequest, api.AudioResult]{
		Work: a.process,
		Failed: func(r *persistence.RefundRequest, err error) api.AudioResult {
			return api.AudioResult{ID: r.ID, Name: utils.FromSQLStr(r.Name), Error: err.Error()}
		},
		Progress: pf,
	}), nil
}

func (a *Audio) process(ctx context.Context, r *persistence.RefundRequest) (api.AudioResult, error) {
	res := api.AudioResult{ID: r.ID, Name: utils.FromSQLStr(r.Name)}
	started := time.Now()
	summary, fallback, err := a.summarize(ctx, r)
	if err != nil {
		goapp.Log.Error().Err(err).Int64("ID", r.ID).Msg("audio failed")
		if mErr := a.db.MarkFailed(ctx, r.ID, err.Error()); mErr != nil {
			goapp.Log.Error().Err(mErr).Int64("ID", r.ID).Msg("can't mark failed")
		}
		return res, err
	}
	if err := a.db.SaveSummary(ctx, r.ID, summary.combined, started); err != nil {
		return res, err
	}
	res.Success = true
	res.TranscriptionLength = len(summary.transcript)
	res.SummaryLength = len(summary.summary)
	res.Fallback = fallback
	return res, nil
}

type audioText struct {
	transcript, summary, combined string
}

func (a *Audio) summarize(ctx context.Context, r *persistence.RefundRequest) (*audioText, bool, error) {
	if err := a.db.MarkStage(ctx, r.ID, status.Downloading); err != nil {
		return nil, false, err
	}
	path, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return a.downloader.Download(ctx, r.AudioURL.String, fmt.Sprintf("audio_%d%s", r.ID, utils.AudioExt(r.AudioURL.String, ".mp3")))
	}, a.retry)
	if err != nil {
		return nil, false, fmt.Errorf("can't download audio: %w", err)
	}
	defer func() {
		if err := a.downloader.Remove(path); err != nil {
			goapp.Log.Warn().Err(err).Str("file", path).Msg("can't remove")
		}
	}()

	if err := a.db.MarkStage(ctx, r.ID, status.Transcribing); err != nil {
		return nil, false, err
	}
	res := &audioText{}
	var tFallback, sFallback bool
	res.transcript, tFallback = a.transcriber.Transcribe(ctx, r.ID, path)

	if err := a.db.MarkStage(ctx, r.ID, status.Summarizing); err != nil {
		return nil, false, err
	}
	res.summary, sFallback = a.summarizer.Summarize(ctx, res.transcript)
	res.combined = summarizer.Combine(res.transcript, res.summary)
	goapp.Log.Info().Int64("ID", r.ID).Bool("fallbackText", tFallback).Bool("fallbackSummary", sFallback).
		Msg("summarized")
	return res, tFallback || sFallback, nil
}

// Summaries returns saved summaries, pending records are processed first if there are no summaries yet
func (a *Audio) Summaries(ctx context.Context, pf func(Progress)) ([]api.Summary, error) {
	recs, err := a.db.Summarized(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load summaries: %w", err)
	}
	if len(recs) == 0 {
		goapp.Log.Info().Msg("no summaries, processing pending audio")
		if _, err := a.ProcessPending(ctx, pf); err != nil {
			return nil, err
		}
		if recs, err = a.db.Summarized(ctx); err != nil {
			return nil, fmt.Errorf("can't load summaries: %w", err)
		}
	}
	res := make([]api.Summary, 0, len(recs))
	for _, r := range recs {
		res = append(res, api.Summary{ID: r.ID, Name: utils.FromSQLStr(r.Name),
			Summary:        summarizer.ExtractSummary(r.Summary.String),
			ProcessingTime: utils.FromSQLFloat(r.ProcessingTimeSeconds)})
	}
	return res, nil
}
