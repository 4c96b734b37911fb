package models

import "time"

// DateTimeLayout is the local-time rendering stored alongside each probe
const DateTimeLayout = "2006-01-02 15:04:05"

// ProbeRecord is one reachability attempt against the target
type ProbeRecord struct {
	Timestamp int64    `json:"timestamp"` // ms since epoch
	DateTime  string   `json:"datetime"`
	Success   bool     `json:"success"`
	TTL       *int     `json:"ttl"`
	Time      *float64 `json:"time"` // round trip in ms
}

// NewProbeRecord stamps a record with the given completion time.
// ttl and rtt are kept independently of success: a successful probe
// whose output could not be parsed still has nil fields.
func NewProbeRecord(at time.Time, success bool, ttl *int, rtt *float64) ProbeRecord {
	return ProbeRecord{
		Timestamp: at.UnixMilli(),
		DateTime:  at.Local().Format(DateTimeLayout),
		Success:   success,
		TTL:       ttl,
		Time:      rtt,
	}
}

// WindowAggregate is the summary of one trailing window
type WindowAggregate struct {
	Count      int     `json:"count"`
	Success    int     `json:"success"`
	Fail       int     `json:"fail"`
	AvgTTL     float64 `json:"avgTTL"`
	AvgTime    float64 `json:"avgTime"`
	PacketLoss float64 `json:"packetLoss"`
}

// WindowView is what the read API returns for a window
type WindowView struct {
	WindowAggregate
	Uptime   float64 `json:"uptime"`
	Downtime float64 `json:"downtime"`
}

// Summary maps window name to its aggregate
type Summary map[string]WindowAggregate

// SpeedtestSnapshot is the latest bandwidth test result
type SpeedtestSnapshot struct {
	Ping      float64   `json:"ping"`     // ms
	Download  float64   `json:"download"` // Mbps
	Upload    float64   `json:"upload"`   // Mbps
	ISP       string    `json:"isp"`
	Server    string    `json:"server"`
	Timestamp time.Time `json:"timestamp"`
}

// TargetStatus tracks target state for change detection
type TargetStatus struct {
	Target              string
	Up                  bool
	ConsecutiveFailures int
}
