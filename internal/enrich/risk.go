// Package enrich derives a risk level and a notification text from a
// normalized event and its asset classification. The rules are ordered
// and deterministic; enrichment never feeds back into dedup decisions.
package enrich

import (
	"strings"

	"soc-alert-relay-go/internal/model"
)

// Assessment is the outcome of the risk rules for one event.
type Assessment struct {
	Risk   model.RiskLevel `json:"risk"`
	Reason string          `json:"reason,omitempty"`
}

// severityRank folds the vendor's free-text severity onto a coarse scale.
// Vendors emit English severity words even inside Russian alert bodies.
func severityRank(vendorSeverity string) int {
	switch strings.ToLower(strings.TrimSpace(vendorSeverity)) {
	case "critical", "high":
		return 3
	case "medium", "moderate":
		return 2
	case "low":
		return 1
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Evaluate applies the risk rules in order. First match wins.
func Evaluate(ev model.NormalizedEvent, class model.AssetClass) Assessment {
	eventType := strings.ToLower(ev.EventType)
	detection := strings.ToLower(ev.DetectionName)

	// 1) Ransomware/malware/exploit categories are always critical.
	if containsAny(eventType, "ransomware", "malware", "exploit") ||
		containsAny(detection, "ransomware", "exploit") {
		return Assessment{
			Risk:   model.RiskCritical,
			Reason: "Threat category escalated to CRITICAL (rules)",
		}
	}

	sev := severityRank(ev.VendorSeverity)

	// 2) Medium+ vendor severity on a server escalates.
	if class == model.AssetServer && sev >= 2 {
		return Assessment{
			Risk:   model.RiskHigh,
			Reason: "Critical Asset Involved",
		}
	}

	// 2b) Unclassified assets get a soft escalation until someone
	// classifies them.
	if class == model.AssetUnclassified {
		if sev >= 3 {
			return Assessment{
				Risk:   model.RiskHigh,
				Reason: "Asset is UNCLASSIFIED (needs classification)",
			}
		}
		if sev == 2 {
			return Assessment{
				Risk:   model.RiskHigh,
				Reason: "Soft escalation: UNCLASSIFIED + Medium severity",
			}
		}
	}

	// 3) Standard scale.
	var risk model.RiskLevel
	switch {
	case sev >= 3:
		risk = model.RiskHigh
	case sev == 2:
		risk = model.RiskMedium
	case sev == 1:
		risk = model.RiskLow
	default:
		risk = model.RiskInfo
	}

	var reason string
	if class == model.AssetUnclassified {
		reason = "Asset is UNCLASSIFIED (needs classification)"
	}
	return Assessment{Risk: risk, Reason: reason}
}
