package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pingit/app/internal/models"
)

// File names inside the results and history directories
const (
	SummaryFile   = "ping_stats.json"
	SpeedtestFile = "speedtest.json"
	HistoryFile   = "history.json"
	FailedFile    = "failed.json"
)

// FileStore keeps each artifact in its own JSON file
type FileStore struct {
	resultsDir string
	historyDir string
}

// OpenFileStore creates the directories if needed
func OpenFileStore(resultsDir, historyDir string) (*FileStore, error) {
	for _, dir := range []string{resultsDir, historyDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FileStore{resultsDir: resultsDir, historyDir: historyDir}, nil
}

func (s *FileStore) summaryPath() string   { return filepath.Join(s.resultsDir, SummaryFile) }
func (s *FileStore) speedtestPath() string { return filepath.Join(s.resultsDir, SpeedtestFile) }
func (s *FileStore) historyPath() string   { return filepath.Join(s.historyDir, HistoryFile) }
func (s *FileStore) failedPath() string    { return filepath.Join(s.historyDir, FailedFile) }

// SaveSummary replaces the summary file
func (s *FileStore) SaveSummary(summary models.Summary) error {
	return writeJSON(s.summaryPath(), summary)
}

// SaveHistory replaces the history file
func (s *FileStore) SaveHistory(history []models.ProbeRecord) error {
	return writeJSON(s.historyPath(), nonNil(history))
}

// SaveFailed replaces the failed-only file
func (s *FileStore) SaveFailed(failed []models.ProbeRecord) error {
	return writeJSON(s.failedPath(), nonNil(failed))
}

// SaveSpeedtest replaces the speedtest file
func (s *FileStore) SaveSpeedtest(snap models.SpeedtestSnapshot) error {
	return writeJSON(s.speedtestPath(), snap)
}

// LoadSummary reads the summary file
func (s *FileStore) LoadSummary() (models.Summary, bool, error) {
	var summary models.Summary
	found, err := readJSON(s.summaryPath(), &summary)
	return summary, found, err
}

// LoadHistory reads the history file
func (s *FileStore) LoadHistory() ([]models.ProbeRecord, bool, error) {
	var history []models.ProbeRecord
	found, err := readJSON(s.historyPath(), &history)
	return history, found, err
}

// LoadFailed reads the failed-only file
func (s *FileStore) LoadFailed() ([]models.ProbeRecord, bool, error) {
	var failed []models.ProbeRecord
	found, err := readJSON(s.failedPath(), &failed)
	return failed, found, err
}

// LoadSpeedtest reads the speedtest file
func (s *FileStore) LoadSpeedtest() (models.SpeedtestSnapshot, bool, error) {
	var snap models.SpeedtestSnapshot
	found, err := readJSON(s.speedtestPath(), &snap)
	return snap, found, err
}

// Close is a no-op for files
func (s *FileStore) Close() error { return nil }

// writeJSON writes to a temp file in the target directory and renames it
// over path, so readers see either the old or the new file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	// CreateTemp makes the file owner-only
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	// every artifact is an object or an array; a bare null is a damaged file
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return true, corrupt(path, errors.New("unexpected null"))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, corrupt(path, err)
	}
	return true, nil
}

func nonNil(records []models.ProbeRecord) []models.ProbeRecord {
	if records == nil {
		return []models.ProbeRecord{}
	}
	return records
}
