package models

import "time"

// UpdateRecord tracks delivery history for one display. Counters only
// increase for the process lifetime; the success and error timestamps are
// tracked independently so a currently failing display still shows when it
// last worked.
type UpdateRecord struct {
	LastAttempt      *time.Time `json:"last_attempt"`
	LastSuccess      *time.Time `json:"last_success"`
	LastError        *time.Time `json:"last_error"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`
	SuccessCount     uint64     `json:"success_count"`
	ErrorCount       uint64     `json:"error_count"`
}

// StatusReport is the result of polling one display's HTTP endpoint.
// A device that answers 200 is online even when its banner line cannot be
// parsed; the reported fields are then simply left empty.
type StatusReport struct {
	Name                 string  `json:"name"`
	Addr                 string  `json:"addr"`
	ConfiguredResolution string  `json:"configured_resolution"`
	ConfiguredMode       string  `json:"configured_mode"`
	Online               bool    `json:"online"`
	ReportedResolution   string  `json:"reported_resolution,omitempty"`
	ReportedMode         string  `json:"reported_mode,omitempty"`
	LatencyMS            float64 `json:"latency_ms,omitempty"`
	Error                string  `json:"error,omitempty"`
}

// RefreshRequest asks for an immediate out-of-schedule update. An empty
// Source matches every job scheduled for the display.
type RefreshRequest struct {
	Display string `json:"display"`
	Source  string `json:"source,omitempty"`
}

// UpdateEvent describes a single delivery attempt. It is published per
// display to whichever event sinks are configured.
type UpdateEvent struct {
	Display   string    `json:"display"`
	Source    string    `json:"source"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Bytes     int       `json:"bytes"`
	LatencyMS float64   `json:"latency_ms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
