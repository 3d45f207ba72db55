package summarizer

import (
	"errors"
	"testing"

	"github.com/airenas/supaquery/internal/pkg/llm"
	"github.com/airenas/supaquery/internal/pkg/test"
	"github.com/airenas/supaquery/internal/pkg/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func initTest(t *testing.T) (*Service, *mocks.LLM) {
	t.Helper()
	llmMock := &mocks.LLM{}
	s, err := NewService(llmMock)
	require.Nil(t, err)
	return s, llmMock
}

func TestSummarize(t *testing.T) {
	s, llmMock := initTest(t)
	llmMock.On("Complete", mock.Anything, mock.Anything).Return(" Customer wants money back. ", nil)

	res, fb := s.Summarize(test.Ctx(t), "text")

	assert.Equal(t, "Customer wants money back.", res)
	assert.False(t, fb)
	req := llmMock.Calls[0].Arguments[1].(*llm.Request)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 300, req.MaxTokens)
	require.Equal(t, 2, len(req.Messages))
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "text")
}

func TestSummarize_Fallback(t *testing.T) {
	tests := []struct {
		name string
		resp string
		err  error
	}{
		{name: "error", err: errors.New("429 rate limit")},
		{name: "empty", resp: "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, llmMock := initTest(t)
			llmMock.On("Complete", mock.Anything, mock.Anything).Return(tt.resp, tt.err)

			res, fb := s.Summarize(test.Ctx(t), "my order number ABC123 has a defect")

			assert.True(t, fb)
			assert.Equal(t, "Customer is requesting a refund for order ABC123 due to a defective or non-functioning product.", res)
		})
	}
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "Customer is requesting a refund."},
		{name: "order and defect", in: "order number ABC123, it has a defect",
			want: "Customer is requesting a refund for order ABC123 due to a defective or non-functioning product."},
		{name: "order hash", in: "Order #X77 is broken",
			want: "Customer is requesting a refund for order X77 due to a defective or non-functioning product."},
		{name: "order is", in: "My order number is XYZ5456.",
			want: "Customer is requesting a refund for order XYZ5456."},
		{name: "no digit order", in: "I placed an order online",
			want: "Customer is requesting a refund."},
		{name: "not described", in: "It doesn't match the photo",
			want: "Customer is requesting a refund because the product doesn't match the description."},
		{name: "needs", in: "I changed my mind",
			want: "Customer is requesting a refund because the product doesn't meet their needs."},
		{name: "defect wins", in: "Damaged and doesn't match",
			want: "Customer is requesting a refund due to a defective or non-functioning product."},
		{name: "all", in: "order 12 not working, under warranty, I will send back the item",
			want: "Customer is requesting a refund for order 12 due to a defective or non-functioning product " +
				"and mentions product warranty/guarantee and is willing to return the item."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Heuristic(tt.in))
		})
	}
}

func TestCombine(t *testing.T) {
	c := Combine("olia", "sum")
	assert.Equal(t, "TRANSCRIPTION:\nolia\n\nSUMMARY:\nsum", c)
	assert.Equal(t, "sum", ExtractSummary(c))
	assert.Equal(t, "olia", ExtractTranscript(c))
}

func TestExtractSummary_NoTag(t *testing.T) {
	assert.Equal(t, "plain", ExtractSummary(" plain "))
}

func TestNewService_Fail(t *testing.T) {
	_, err := NewService(nil)
	assert.NotNil(t, err)
}
