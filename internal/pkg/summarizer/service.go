package summarizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/llm"
)

const (
	systemPrompt = "You are a helpful assistant that creates concise, accurate summaries of audio transcriptions. " +
		"Focus on key points, maintain the original meaning, and highlight any actions requested by the customer."
	userPrompt = "Please summarize this audio transcription from a customer requesting a refund:\n\n"

	transcriptionTag = "TRANSCRIPTION:"
	summaryTag       = "SUMMARY:"
)

// LLM completes chat requests
type LLM interface {
	Complete(ctx context.Context, req *llm.Request) (string, error)
}

// Service makes a short refund request summary from a transcript
type Service struct {
	llm LLM
}

// NewService creates summarizer
func NewService(llm LLM) (*Service, error) {
	if llm == nil {
		return nil, fmt.Errorf("no LLM")
	}
	return &Service{llm: llm}, nil
}

// Summarize returns model summary or a heuristic one if the model is unavailable, result is never empty
func (s *Service) Summarize(ctx context.Context, transcript string) (string, bool) {
	res, err := s.llm.Complete(ctx, &llm.Request{
		Messages: []llm.Message{{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt + transcript}},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err == nil && strings.TrimSpace(res) != "" {
		return strings.TrimSpace(res), false
	}
	if err == nil {
		err = fmt.Errorf("empty summary")
	}
	goapp.Log.Warn().Err(err).Int("len", len(transcript)).Msg("summarization failed, using heuristic summary")
	return Heuristic(transcript), true
}

// order number must contain a digit, so "order is" or "order form" are not taken as a reference
var orderRegexp = regexp.MustCompile(`(?i)order\s+(?:number|#|no\.?)?\s*(?:is\s+)?([A-Z0-9-]*\d[A-Z0-9-]*)`)

// Heuristic builds one sentence summary from keywords found in the transcript
func Heuristic(transcript string) string {
	lt := strings.ToLower(transcript)
	sb := strings.Builder{}
	sb.WriteString("Customer is requesting a refund")
	if m := orderRegexp.FindStringSubmatch(transcript); len(m) > 1 {
		sb.WriteString(" for order ")
		sb.WriteString(m[1])
	}
	switch {
	case containsAny(lt, "defect", "not working", "broken", "damaged"):
		sb.WriteString(" due to a defective or non-functioning product")
	case containsAny(lt, "not as described", "doesn't match", "does not match"):
		sb.WriteString(" because the product doesn't match the description")
	case containsAny(lt, "changed my mind", "not meeting my needs"):
		sb.WriteString(" because the product doesn't meet their needs")
	}
	if containsAny(lt, "warranty", "guarantee") {
		sb.WriteString(" and mentions product warranty/guarantee")
	}
	if containsAny(lt, "return", "send back") {
		sb.WriteString(" and is willing to return the item")
	}
	sb.WriteString(".")
	return sb.String()
}

// Combine makes a value stored in the summary column
func Combine(transcript, summary string) string {
	return fmt.Sprintf("%s\n%s\n\n%s\n%s", transcriptionTag, transcript, summaryTag, summary)
}

// ExtractSummary returns summary part of the combined value, or all text if there is no summary tag
func ExtractSummary(combined string) string {
	if i := strings.LastIndex(combined, summaryTag); i >= 0 {
		return strings.TrimSpace(combined[i+len(summaryTag):])
	}
	return strings.TrimSpace(combined)
}

// ExtractTranscript returns transcription part of the combined value
func ExtractTranscript(combined string) string {
	res := combined
	if i := strings.LastIndex(res, summaryTag); i >= 0 {
		res = res[:i]
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(res), transcriptionTag))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
