package events

import "github.com/maxaizer/job-intake/internal/domain/models"

var (
	RunProgressedTopic = "RunProgressedEvent"
	RunCompletedTopic  = "RunCompletedEvent"
	RunFailedTopic     = "RunFailedEvent"
)

type RunProgressed struct {
	RunID    string
	Progress int
	Message  string
}

type RunCompleted struct {
	RunID    string
	UserID   string
	Charged  int
	Postings []models.JobPosting
}

type RunFailed struct {
	RunID string
	Code  string
	Err   error
}
