package model

import "time"

// JobState represents the lifecycle stage of an analysis job.
type JobState string

const (
	JobStateStarting   JobState = "starting"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether the state can no longer change.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobStatus is the externally visible state of one analysis job.
type JobStatus struct {
	ID              string          `json:"analysis_id"`
	Status          JobState        `json:"status"`
	Progress        int             `json:"progress"`
	CurrentStep     string          `json:"current_step"`
	TotalPoints     int             `json:"total_points"`
	ProcessedPoints int             `json:"processed_points"`
	Result          *AnalysisReport `json:"result"`
	Error           *string         `json:"error"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsDone reports whether the job reached a terminal state.
func (s *JobStatus) IsDone() bool {
	return s.Status.IsTerminal()
}

// ProgressEvent is emitted by the analyzer after each unit of work.
type ProgressEvent struct {
	Step            string `json:"step"`
	Percent         int    `json:"percent"`
	TotalPoints     int    `json:"total_points"`
	ProcessedPoints int    `json:"processed_points"`
}

// ClampPercent bounds p to [0,100].
func ClampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
