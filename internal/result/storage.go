package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ManifestFile is written at the root of every run directory.
const ManifestFile = "manifest.json"

// CreateRunDir creates baseDir/runs/<timestamp> and points baseDir/latest
// at it.
func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if _, err := os.Stat(runDir); err == nil {
		runDir += "-" + uuid.NewString()[:8]
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// NewManifest starts a manifest for workflow with a fresh run id.
func NewManifest(workflow string, inputs map[string]string) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		Workflow:  workflow,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Inputs:    inputs,
	}
}

// Finish records the outcome of the run.
func (m *Manifest) Finish(runErr error) {
	now := time.Now().UTC()
	m.FinishedAt = &now
	if runErr != nil {
		m.Status = StatusFailed
		m.Error = runErr.Error()
		return
	}
	m.Status = StatusCompleted
}

func WriteManifest(runDir string, m *Manifest) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating run dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, ManifestFile), data, 0o644)
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
