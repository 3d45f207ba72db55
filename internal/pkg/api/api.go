package api

import "time"

// QueryRequest is the body of query calls
type QueryRequest struct {
	Query string `json:"query"`
	Email string `json:"email,omitempty"`
}

// ReceiptResult is the outcome of one receipt image
type ReceiptResult struct {
	FileName string  `json:"fileName"`
	Success  bool    `json:"success"`
	Amount   float64 `json:"amount,omitempty"`
	FileID   *int64  `json:"fileId,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// AudioResult is the outcome of one refund audio record
type AudioResult struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name,omitempty"`
	Success             bool   `json:"success"`
	TranscriptionLength int    `json:"transcriptionLength,omitempty"`
	SummaryLength       int    `json:"summaryLength,omitempty"`
	Fallback            bool   `json:"fallback,omitempty"`
	Error               string `json:"error,omitempty"`
}

// Summary of a processed refund audio
type Summary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name,omitempty"`
	Summary string `json:"summary"`

	// seconds
	ProcessingTime float64 `json:"processingTime,omitempty"`
}

// ReceiptURL is a resolved storage link
type ReceiptURL struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
}

// Response is returned for every routed query
type Response struct {
	Success        bool        `json:"success"`
	Intent         string      `json:"intent"`
	Message        string      `json:"message,omitempty"`
	Error          string      `json:"error,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	OperationType  string      `json:"operationType,omitempty"`
	Table          string      `json:"table,omitempty"`
	GeneratedQuery string      `json:"generatedQuery,omitempty"`
}

// Job is the status of an asynchronously executed query
type Job struct {
	ID      string    `json:"id"`
	Query   string    `json:"query,omitempty"`
	Intent  string    `json:"intent,omitempty"`
	Status  string    `json:"status"`
	Done    int32     `json:"done,omitempty"`
	Total   int32     `json:"total,omitempty"`
	Error   string    `json:"error,omitempty"`
	Result  *Response `json:"result,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}
