package mocks

import (
	"context"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/supaquery/internal/pkg/llm"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// Loader is image loader mock
type Loader struct{ mock.Mock }

func (m *Loader) Load(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	return to[[]byte](args.Get(0)), args.Error(1)
}

// VisionModel is vision client mock
type VisionModel struct{ mock.Mock }

func (m *VisionModel) Generate(ctx context.Context, prompt, mime string, data []byte) (string, error) {
	args := m.Called(ctx, prompt, mime, data)
	return args.String(0), args.Error(1)
}

// LLM is chat client mock
type LLM struct{ mock.Mock }

func (m *LLM) Complete(ctx context.Context, req *llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// URLProvider is storage mock
type URLProvider struct{ mock.Mock }

func (m *URLProvider) PublicURL(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// AmountExtractor is receipt reader mock
type AmountExtractor struct{ mock.Mock }

func (m *AmountExtractor) ExtractTotal(ctx context.Context, imageURL string) (float64, error) {
	args := m.Called(ctx, imageURL)
	return to[float64](args.Get(0)), args.Error(1)
}

// ReceiptDB is receipt repository mock
type ReceiptDB struct{ mock.Mock }

func (m *ReceiptDB) UpdateReceipt(ctx context.Context, id int64, amount float64, imageURL string) (int64, error) {
	args := m.Called(ctx, id, amount, imageURL)
	return to[int64](args.Get(0)), args.Error(1)
}

func (m *ReceiptDB) UpdateAmount(ctx context.Context, id int64, amount float64) (int64, error) {
	args := m.Called(ctx, id, amount)
	return to[int64](args.Get(0)), args.Error(1)
}

func (m *ReceiptDB) UpdateAmountByImage(ctx context.Context, imageURL string, amount float64) (int64, error) {
	args := m.Called(ctx, imageURL, amount)
	return to[int64](args.Get(0)), args.Error(1)
}

// Downloader is file fetcher mock
type Downloader struct{ mock.Mock }

func (m *Downloader) Download(ctx context.Context, url, name string) (string, error) {
	args := m.Called(ctx, url, name)
	return args.String(0), args.Error(1)
}

func (m *Downloader) Remove(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// Transcriber is transcription service mock
type Transcriber struct{ mock.Mock }

func (m *Transcriber) Transcribe(ctx context.Context, id int64, path string) (string, bool) {
	args := m.Called(ctx, id, path)
	return args.String(0), args.Bool(1)
}

// Summarizer is summarization service mock
type Summarizer struct{ mock.Mock }

func (m *Summarizer) Summarize(ctx context.Context, transcript string) (string, bool) {
	args := m.Called(ctx, transcript)
	return args.String(0), args.Bool(1)
}

// Sender is queue sender mock
type Sender struct{ mock.Mock }

func (m *Sender) SendMessage(ctx context.Context, msg amessages.Message, queue string) error {
	args := m.Called(ctx, msg, queue)
	return args.Error(0)
}

// JobDB is jobs table mock
type JobDB struct{ mock.Mock }

func (m *JobDB) InsertJob(ctx context.Context, job *persistence.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobDB) LoadJob(ctx context.Context, id string) (*persistence.Job, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Job](args.Get(0)), args.Error(1)
}

func (m *JobDB) UpdateJob(ctx context.Context, job *persistence.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobDB) LockEmailTable(ctx context.Context, id, msgType string) error {
	args := m.Called(ctx, id, msgType)
	return args.Error(0)
}

func (m *JobDB) UnLockEmailTable(ctx context.Context, id, msgType string, value *int) error {
	args := m.Called(ctx, id, msgType, value)
	return args.Error(0)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
