package models

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary describes one completed job run for downstream consumers.
type RunSummary struct {
	ID         uuid.UUID      `json:"id"`
	Job        string         `json:"job"`
	Input      string         `json:"input"`
	Output     string         `json:"output,omitempty"`
	Backup     string         `json:"backup,omitempty"`
	Counts     map[string]int `json:"counts"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func NewRunSummary(job, input string, started time.Time) *RunSummary {
	return &RunSummary{
		ID:        uuid.New(),
		Job:       job,
		Input:     input,
		Counts:    make(map[string]int),
		StartedAt: started,
	}
}

func (r *RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
