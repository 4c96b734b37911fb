// Package cache holds the latest bandwidth test result for readers.
package cache

import (
	"sync/atomic"

	"pingit/app/internal/models"
)

// Snapshot holds at most one speedtest result. A newer Set replaces it
// whole; a failed run never calls Set, so the previous value stays.
// It is safe for concurrent use.
type Snapshot struct {
	v atomic.Pointer[models.SpeedtestSnapshot]
}

// New creates an empty snapshot cache
func New() *Snapshot {
	return &Snapshot{}
}

// Get returns the latest result, or false before the first one
func (c *Snapshot) Get() (models.SpeedtestSnapshot, bool) {
	p := c.v.Load()
	if p == nil {
		return models.SpeedtestSnapshot{}, false
	}
	return *p, true
}

// Set stores a result
func (c *Snapshot) Set(snap models.SpeedtestSnapshot) {
	c.v.Store(&snap)
}
