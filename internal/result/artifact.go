package result

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is an append-only, space-separated text file. Each row reaches
// the OS in a single write, so a crash leaves whole rows behind.
type Artifact struct {
	Path string
	f    *os.File
	sync bool
}

// CreateArtifact truncates dir/name and writes header as its first line.
// With sync set every row is fsynced.
func CreateArtifact(dir, name, header string, sync bool) (*Artifact, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	a := &Artifact{Path: path, f: f, sync: sync}
	if err := a.WriteLine(header); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

func (a *Artifact) WriteRow(fields ...string) error {
	return a.WriteLine(strings.Join(fields, " "))
}

func (a *Artifact) WriteLine(line string) error {
	if a.f == nil {
		return fmt.Errorf("writing %s: artifact closed", a.Path)
	}
	if _, err := a.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing %s: %w", a.Path, err)
	}
	if a.sync {
		if err := a.f.Sync(); err != nil {
			return fmt.Errorf("syncing %s: %w", a.Path, err)
		}
	}
	return nil
}

// Close is safe on a nil or already closed artifact.
func (a *Artifact) Close() error {
	if a == nil || a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}
