package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"
)

const (
	st = "SUPAQUERY/"
	// Work queue name, executes queued queries
	Work = st + "Work"
	// StatusChange queue name
	StatusChange = st + "StatusChange"
	// Inform queue name
	Inform = st + "Inform"
)

// JobMessage is passed through the queues for an async query
type JobMessage struct {
	amessages.QueueMessage
	Status string `json:"status,omitempty"`
}

// NewJobMessage creates a message for the job ID
func NewJobMessage(id string) *JobMessage {
	return &JobMessage{QueueMessage: amessages.QueueMessage{ID: id}}
}

// NewStatusMessage creates a status change message
func NewStatusMessage(id, status string) *JobMessage {
	return &JobMessage{QueueMessage: amessages.QueueMessage{ID: id}, Status: status}
}
