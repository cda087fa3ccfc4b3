package model

import "time"

// ParseReason explains why a parsed event is or is not valid.
type ParseReason string

const (
	ReasonOK               ParseReason = "ok"
	ReasonMissingDevice    ParseReason = "missing_device"
	ReasonMissingDetection ParseReason = "missing_detection"
	ReasonMissingBoth      ParseReason = "missing_device_detection"
	ReasonEmptyContent     ParseReason = "empty_content"
)

// Fingerprint is the hex-encoded identity digest of a normalized event.
type Fingerprint string

// Short returns a truncated form suitable for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Valid reports whether f is a well-formed lowercase sha-256 hex digest.
func (f Fingerprint) Valid() bool {
	if len(f) != 64 {
		return false
	}
	for _, c := range f {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// NormalizedEvent is the canonical representation of one alert, produced
// once by the parser and never mutated afterward. Device, EventType,
// DetectionName, ObjectPath and Result form the identity tuple used for
// fingerprinting; the remaining fields are extracted for audit and
// enrichment only.
type NormalizedEvent struct {
	Device         string      `json:"device"`
	EventType      string      `json:"event_type"`
	DetectionName  string      `json:"detection_name"`
	ObjectPath     string      `json:"object_path"`
	Result         string      `json:"result"`
	ProcessName    string      `json:"process_name,omitempty"`
	SHA256         string      `json:"sha256,omitempty"`
	UserName       string      `json:"user_name,omitempty"`
	VendorSeverity string      `json:"vendor_severity,omitempty"`
	DetectedAt     *time.Time  `json:"detected_at,omitempty"`
	RawText        string      `json:"raw_text"`
	Valid          bool        `json:"valid"`
	Reason         ParseReason `json:"reason"`
}
