package transcriber

import (
	"context"
	"fmt"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
)

// STT converts an audio file to text
type STT interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Service transcribes audio and never fails: when STT is unavailable a placeholder text is returned
type Service struct {
	stt STT
}

// NewService creates transcription service
func NewService(stt STT) (*Service, error) {
	if stt == nil {
		return nil, fmt.Errorf("no STT")
	}
	return &Service{stt: stt}, nil
}

// Transcribe returns recognized text of record id audio, the second value reports a fallback text
func (s *Service) Transcribe(ctx context.Context, id int64, path string) (string, bool) {
	res, err := s.stt.Transcribe(ctx, path)
	if err == nil && strings.TrimSpace(res) != "" {
		return strings.TrimSpace(res), false
	}
	if err == nil {
		err = fmt.Errorf("empty transcription")
	}
	goapp.Log.Warn().Err(err).Int64("ID", id).Msg("transcription failed, using fallback text")
	return Fallback(id), true
}

var scenarios = []string{
	"Hello, this is regarding my recent purchase with order number ABC%d123. I received the product last week " +
		"but it's not working properly. It keeps shutting down after a few minutes of use. I've tried troubleshooting " +
		"with your guide but nothing works. I'd like to request a refund as per your 30-day money-back guarantee. " +
		"I can return the item in its original packaging.",
	"Hi there, I'm calling about an online order I placed about two weeks ago. The item I received doesn't match " +
		"the description on your website. The color is completely different and there are some features missing " +
		"that were advertised. I'm disappointed with this purchase and would like to return it for a full refund. " +
		"My order number is XYZ%d456.",
	"Good afternoon, I purchased a subscription to your service last month, but I've decided it's not meeting " +
		"my needs. According to your terms, I can cancel within the first 60 days for a full refund. I'd like to " +
		"proceed with that please. My account email is customer%d@example.com.",
	"Hello, I recently bought your product from a retail store and registered it online (ref %d). Unfortunately, " +
		"it's defective - there's a manufacturing defect that makes it unusable. I have the receipt and it's still " +
		"under warranty. I've tried contacting support but haven't received a solution, so I'd like to request " +
		"a refund instead of a replacement.",
}

// Fallback returns a placeholder transcript, the same id always gets the same text
func Fallback(id int64) string {
	i := id % int64(len(scenarios))
	if i < 0 {
		i = -i
	}
	return fmt.Sprintf(scenarios[i], id)
}
