package router

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/airenas/supaquery/internal/pkg/query"
)

type (
	// Classifier detects the query intent
	Classifier interface {
		Classify(ctx context.Context, query string) *intent.Intent
	}

	// Compiler runs database queries
	Compiler interface {
		Compile(ctx context.Context, query string) *query.Result
	}

	// ReceiptProcessor processes receipt images
	ReceiptProcessor interface {
		Process(ctx context.Context, files []string, pf func(batch.Progress)) *batch.Report[api.ReceiptResult]
	}

	// AudioProcessor processes refund audio
	AudioProcessor interface {
		ProcessPending(ctx context.Context, pf func(batch.Progress)) (*batch.Report[api.AudioResult], error)
		Summaries(ctx context.Context, pf func(batch.Progress)) ([]api.Summary, error)
	}

	// URLProvider resolves public file links
	URLProvider interface {
		PublicURL(ctx context.Context, name string) (string, error)
	}
)

// Service routes a free text query to the pipeline selected by its intent
type Service struct {
	Classifier Classifier
	Compiler   Compiler
	Receipts   ReceiptProcessor
	Audio      AudioProcessor
	URLs       URLProvider
}

// Validate checks if all pipelines are set
func (s *Service) Validate() error {
	if s.Classifier == nil {
		return fmt.Errorf("no classifier")
	}
	if s.Compiler == nil {
		return fmt.Errorf("no compiler")
	}
	if s.Receipts == nil {
		return fmt.Errorf("no receipt processor")
	}
	if s.Audio == nil {
		return fmt.Errorf("no audio processor")
	}
	if s.URLs == nil {
		return fmt.Errorf("no url provider")
	}
	return nil
}

// Classify returns the intent of the query
func (s *Service) Classify(ctx context.Context, q string) *intent.Intent {
	return s.Classifier.Classify(ctx, q)
}

// Handle classifies and executes the query, errors are reported inside the response
func (s *Service) Handle(ctx context.Context, q string, pf func(batch.Progress)) *api.Response {
	return s.HandleIntent(ctx, q, s.Classify(ctx, q), pf)
}

// HandleIntent executes the query with an already known intent
func (s *Service) HandleIntent(ctx context.Context, q string, in *intent.Intent, pf func(batch.Progress)) *api.Response {
	goapp.Log.Info().Str("intent", string(in.Kind)).Str("query", goapp.Sanitize(q)).Msg("handle")
	res := &api.Response{Intent: string(in.Kind)}
	switch in.Kind {
	case intent.ReceiptProcessing:
		rep := s.Receipts.Process(ctx, in.Files, pf)
		res.Success = true
		res.Message = fmt.Sprintf("Processed %d receipt%s successfully.", len(in.Files), plural(len(in.Files)))
		res.Data = rep
	case intent.AudioProcessing:
		rep, err := s.Audio.ProcessPending(ctx, pf)
		if err != nil {
			return failed(res, err, "Failed to process audio files")
		}
		res.Success = true
		res.Message = "Processed audio files successfully."
		res.Data = rep
	case intent.AudioSummary:
		sums, err := s.Audio.Summaries(ctx, pf)
		if err != nil {
			return failed(res, err, "Failed to retrieve audio summaries")
		}
		res.Success = true
		res.Message = "Retrieved audio summaries successfully."
		res.Data = sums
	case intent.ReceiptURL:
		url, err := s.URLs.PublicURL(ctx, in.File)
		if err != nil {
			return failed(res, err, fmt.Sprintf("Failed to get URL for %s", in.File))
		}
		res.Success = true
		res.Message = fmt.Sprintf("Retrieved URL for %s successfully.", in.File)
		res.Data = &api.ReceiptURL{FileName: in.File, URL: url}
	default:
		res.Intent = string(intent.DatabaseQuery)
		qr := s.Compiler.Compile(ctx, q)
		res.Success = qr.Success()
		res.Message = qr.Message
		res.Error = qr.Error
		res.OperationType = string(qr.OperationType)
		res.Table = qr.Table
		res.GeneratedQuery = qr.GeneratedQuery
		if qr.Data != nil {
			res.Data = qr.Data
		}
	}
	return res
}

func failed(res *api.Response, err error, msg string) *api.Response {
	goapp.Log.Error().Err(err).Str("intent", res.Intent).Send()
	res.Success = false
	res.Error = err.Error()
	res.Message = msg
	return res
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
