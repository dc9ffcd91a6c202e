package result

import "time"

// Manifest describes one workflow run and is rewritten as the run progresses.
type Manifest struct {
	RunID      string            `json:"run_id"`
	Workflow   string            `json:"workflow"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Inputs     map[string]string `json:"inputs"`
	Artifacts  []string          `json:"artifacts,omitempty"`
	MasterSeed int64             `json:"master_seed,omitempty"`
}

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
