package api

import "io"

const (
	// PrmFile is the multipart field of the audio file
	PrmFile = "file"
	// PrmModel is the multipart field of the model name
	PrmModel = "model"
	// PrmResponseFormat is the multipart field of the result format
	PrmResponseFormat = "response_format"
)

// UploadData keeps structure for the transcription call
type UploadData struct {
	Params map[string]string
	// file name -> content
	Files map[string]io.Reader
}

// Result is the speech-to-text response
type Result struct {
	Text string `json:"text"`
}
