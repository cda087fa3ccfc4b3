// Package fingerprint derives the stable identity digest of a normalized
// event. Two events with the same identity tuple always hash to the same
// fingerprint regardless of when or how they arrived.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"soc-alert-relay-go/internal/model"
)

// separator joins the identity fields before hashing. The fields are host
// names, detection names, file paths and result strings; none of them
// contain a pipe.
const separator = "|"

// Compute returns the hex sha-256 digest of the event's identity tuple
// (device, event type, detection name, object path, result), each field
// trimmed and lowercased first. It is defined only for valid events and
// ignores detected_at, raw_text and all non-identity fields.
func Compute(ev model.NormalizedEvent) (model.Fingerprint, error) {
	if !ev.Valid {
		return "", fmt.Errorf("fingerprint undefined for invalid event (reason: %s)", ev.Reason)
	}

	joined := strings.Join([]string{
		normalize(ev.Device),
		normalize(ev.EventType),
		normalize(ev.DetectionName),
		normalize(ev.ObjectPath),
		normalize(ev.Result),
	}, separator)

	sum := sha256.Sum256([]byte(joined))
	return model.Fingerprint(hex.EncodeToString(sum[:])), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
