// Package storage persists window aggregates, probe history and the latest
// bandwidth snapshot. In-memory engine state is the authority; storage is
// written after every tick and read only at startup.
package storage

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"pingit/app/internal/models"
	"pingit/app/internal/stats"
)

// ErrCorruptState marks persisted content that cannot be decoded.
// It is fatal at startup.
var ErrCorruptState = errors.New("corrupt persisted state")

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is a durable home for the engine's artifacts. Every Save replaces
// the artifact as a whole. Loaders report found=false when the artifact
// has never been written.
type Store interface {
	SaveSummary(summary models.Summary) error
	SaveHistory(history []models.ProbeRecord) error
	SaveFailed(failed []models.ProbeRecord) error
	SaveSpeedtest(snap models.SpeedtestSnapshot) error

	LoadSummary() (models.Summary, bool, error)
	LoadHistory() ([]models.ProbeRecord, bool, error)
	LoadFailed() ([]models.ProbeRecord, bool, error)
	LoadSpeedtest() (models.SpeedtestSnapshot, bool, error)

	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend    string
	ResultsDir string
	HistoryDir string
	DBPath     string
}

// Open creates the configured store
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return OpenFileStore(opts.ResultsDir, opts.HistoryDir)
	case BackendSQLite:
		return OpenSQLite(opts.DBPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// Persist writes the summary, the full history and the failed-only
// projection of s. The three writes are independent: a failure in one does
// not stop the others, and all failures are returned together.
func Persist(st Store, s *stats.State) error {
	var err error
	if e := st.SaveSummary(s.Windows); e != nil {
		err = multierr.Append(err, fmt.Errorf("save summary: %w", e))
	}
	if e := st.SaveHistory(s.History); e != nil {
		err = multierr.Append(err, fmt.Errorf("save history: %w", e))
	}
	if e := st.SaveFailed(s.Failed); e != nil {
		err = multierr.Append(err, fmt.Errorf("save failed: %w", e))
	}
	return err
}

// Restored is everything recovered from a store at startup
type Restored struct {
	Summary   models.Summary // nil when no summary was persisted
	History   []models.ProbeRecord
	Speedtest *models.SpeedtestSnapshot
}

// Load reads the persisted state. A missing artifact is not an error;
// a malformed one is, wrapped in ErrCorruptState.
func Load(st Store) (*Restored, error) {
	out := &Restored{}

	summary, found, err := st.LoadSummary()
	if err != nil {
		return nil, err
	}
	if found {
		out.Summary = summary
	}

	history, _, err := st.LoadHistory()
	if err != nil {
		return nil, err
	}
	out.History = history

	// failed is rederived from history, but a damaged copy must still stop startup
	if _, _, err := st.LoadFailed(); err != nil {
		return nil, err
	}

	snap, found, err := st.LoadSpeedtest()
	if err != nil {
		return nil, err
	}
	if found {
		out.Speedtest = &snap
	}
	return out, nil
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptState, what, err)
}
