package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoRestorePoint is returned when no restore point file exists.
var ErrNoRestorePoint = errors.New("no restore point")

// RestorePoint records the values a sweep has to put back.
type RestorePoint struct {
	SweepID    string    `yaml:"sweepId,omitempty"`
	StorePath  string    `yaml:"storePath"`
	CreatedAt  time.Time `yaml:"createdAt"`
	Properties Snapshot  `yaml:"properties"`
}

// SaveRestorePoint writes rp to path atomically, creating parent directories.
func SaveRestorePoint(path string, rp RestorePoint) error {
	data, err := yaml.Marshal(&rp)
	if err != nil {
		return fmt.Errorf("failed to marshal restore point: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save restore point %s: %w", path, err)
	}
	return nil
}

// LoadRestorePoint reads the restore point stored at path.
func LoadRestorePoint(path string) (RestorePoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RestorePoint{}, fmt.Errorf("%w at %s", ErrNoRestorePoint, path)
		}
		return RestorePoint{}, fmt.Errorf("failed to read restore point %s: %w", path, err)
	}
	var rp RestorePoint
	if err := yaml.Unmarshal(data, &rp); err != nil {
		return RestorePoint{}, fmt.Errorf("failed to parse restore point %s: %w", path, err)
	}
	if rp.StorePath == "" || len(rp.Properties) == 0 {
		return RestorePoint{}, fmt.Errorf("restore point %s is incomplete", path)
	}
	return rp, nil
}

// RemoveRestorePoint deletes the restore point; a missing file is not an error.
func RemoveRestorePoint(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove restore point %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
