package status

//Status represents record or job processing status
type Status int

const (
	// Pending - not started
	Pending Status = iota + 1
	// Processing - in progress
	Processing
	// Complete - final step
	Complete
	// Failed - final step with error
	Failed
)

var (
	statusName = map[Status]string{Pending: "pending", Processing: "processing",
		Complete: "complete", Failed: "failed"}
	nameStatus = map[string]Status{"pending": Pending, "processing": Processing,
		"complete": Complete, "failed": Failed}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Final reports if no more work will be done
func (st Status) Final() bool {
	return st == Complete || st == Failed
}

// Stage is a step of audio record processing
type Stage int

const (
	// Downloading audio
	Downloading Stage = iota + 1
	// Transcribing audio
	Transcribing
	// Summarizing transcript
	Summarizing
)

var stageName = map[Stage]string{Downloading: "downloading", Transcribing: "transcribing", Summarizing: "summarizing"}

func (st Stage) String() string {
	return stageName[st]
}
