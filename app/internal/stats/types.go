package stats

import (
	"time"

	"pingit/app/internal/models"
)

// Retention is the hard cap on probe history. It is one day longer than
// the month window so tick drift never starves that window.
const Retention = 31 * 24 * time.Hour

// Window names as used in the summary store and the read API
const (
	WindowTenMinutes = "tenMinutes"
	WindowHour       = "hour"
	WindowDay        = "day"
	WindowWeek       = "week"
	WindowMonth      = "month"
)

// Window is one fixed trailing range
type Window struct {
	Name string
	Path string // route suffix under /results/
	Span time.Duration
}

// Windows lists every aggregated window, shortest first
var Windows = []Window{
	{Name: WindowTenMinutes, Path: "10m", Span: 10 * time.Minute},
	{Name: WindowHour, Path: "hour", Span: time.Hour},
	{Name: WindowDay, Path: "day", Span: 24 * time.Hour},
	{Name: WindowWeek, Path: "week", Span: 7 * 24 * time.Hour},
	{Name: WindowMonth, Path: "month", Span: 30 * 24 * time.Hour},
}

// LookupWindow finds a window by name
func LookupWindow(name string) (Window, bool) {
	for _, w := range Windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}

// State is one published, fully formed engine state. Nothing in a
// State is modified after it has been published.
type State struct {
	History   []models.ProbeRecord
	Failed    []models.ProbeRecord
	Windows   models.Summary
	UpdatedAt time.Time
}

// Window returns the aggregate for name, zero-valued if it was never computed
func (s *State) Window(name string) models.WindowAggregate {
	if s == nil || s.Windows == nil {
		return models.WindowAggregate{}
	}
	return s.Windows[name]
}
