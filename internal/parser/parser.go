// Package parser turns raw alert mail bodies into canonical normalized
// events. Parsing is deterministic and pure: the same RawMessage always
// yields the same event, nothing is guessed, and corrupt input degrades to
// an invalid event instead of an error.
package parser

import (
	"regexp"
	"strings"
	"time"

	"soc-alert-relay-go/internal/model"
)

var gmtSuffixRe = regexp.MustCompile(`\(\s*GMT([+-]\d{2}:\d{2})\s*\)`)

// detectedAtLayouts are tried in order against the extracted timestamp
// value. Zoneless layouts parse as UTC.
var detectedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05 -07:00",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"January 2, 2006 3:04:05 PM",
	"Monday, January 2, 2006 3:04:05 PM",
	time.RFC1123Z,
	time.RFC1123,
}

// Parse extracts a normalized event from a raw alert message. HTML bodies
// are stripped to text first; the same ordered label rules run either way.
// RawText keeps the original content verbatim regardless of outcome, and
// Valid is true only when both device and detection name were extracted.
func Parse(msg model.RawMessage) model.NormalizedEvent {
	ev := model.NormalizedEvent{RawText: msg.Content}

	if strings.TrimSpace(msg.Content) == "" {
		ev.Reason = model.ReasonEmptyContent
		return ev
	}

	text := msg.Content
	if msg.ContentType == model.ContentTypeHTML {
		text = htmlToText(text)
	} else {
		text = normalizeText(text)
	}

	pairs := scanKVPairs(text)
	labeled := make(map[field]string, len(labelRules))
	for _, r := range labelRules {
		labeled[r.field] = firstMatch(pairs, r.labels)
	}

	names := allMatches(pairs, nameLabels)
	process, detection := splitProcessAndDetection(names)

	ev.Device = labeled[fieldDevice]
	if ev.Device == "" {
		if m := deviceFallbackRe.FindStringSubmatch(text); m != nil {
			ev.Device = strings.TrimSpace(m[1])
		}
	}

	ev.EventType = labeled[fieldEventType]
	if ev.EventType == "" {
		if m := quotedEventTypeRe.FindStringSubmatch(text); m != nil {
			ev.EventType = strings.TrimSpace(m[1])
		}
	}

	ev.DetectionName = detection
	if ev.DetectionName == "" {
		ev.DetectionName = labeled[fieldDetectionName]
	}

	ev.ObjectPath = labeled[fieldObjectPath]
	ev.Result = labeled[fieldResult]

	ev.ProcessName = process
	if ev.ProcessName == "" {
		ev.ProcessName = labeled[fieldProcessName]
	}

	ev.SHA256 = strings.ToLower(labeled[fieldSHA256])
	if ev.SHA256 == "" {
		if m := sha256FallbackRe.FindString(text); m != "" {
			ev.SHA256 = strings.ToLower(m)
		}
	}

	ev.UserName = labeled[fieldUserName]

	if m := severityPhraseRe.FindStringSubmatch(text); m != nil {
		ev.VendorSeverity = strings.TrimSpace(m[1])
	} else {
		ev.VendorSeverity = labeled[fieldVendorSeverity]
	}

	ev.DetectedAt = parseDetectedAt(labeled[fieldDetectedAt])

	switch {
	case ev.Device == "" && ev.DetectionName == "":
		ev.Reason = model.ReasonMissingBoth
	case ev.Device == "":
		ev.Reason = model.ReasonMissingDevice
	case ev.DetectionName == "":
		ev.Reason = model.ReasonMissingDetection
	default:
		ev.Valid = true
		ev.Reason = model.ReasonOK
	}
	return ev
}

// parseDetectedAt is best effort: vendor templates disagree on timestamp
// formats, and absence never invalidates the event.
func parseDetectedAt(val string) *time.Time {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	// "(GMT+03:00)" suffixes become a numeric zone offset.
	val = strings.TrimSpace(gmtSuffixRe.ReplaceAllString(val, "$1"))

	for _, layout := range detectedAtLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
