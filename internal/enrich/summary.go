package enrich

import (
	"fmt"
	"strings"
	"time"

	"soc-alert-relay-go/internal/model"
)

func riskIcon(risk model.RiskLevel) string {
	switch risk {
	case model.RiskCritical, model.RiskHigh:
		return "\U0001F534" // red circle
	case model.RiskMedium:
		return "\U0001F7E1" // yellow circle
	default:
		return "\U0001F7E2" // green circle
	}
}

// Summary renders the plain-text notification body. It is the default
// message text, and the fallback whenever narration is disabled or fails.
func Summary(ev model.NormalizedEvent, class model.AssetClassification, a Assessment, repeats int) string {
	eventType := strings.TrimSpace(ev.EventType)
	if eventType == "" {
		eventType = "Event"
	}
	device := strings.TrimSpace(ev.Device)
	if device == "" {
		device = "unknown"
	}

	lines := []string{
		fmt.Sprintf("%s | %s | %s | %s", riskIcon(a.Risk), a.Risk, eventType, device),
	}
	if class.Class != "" {
		lines = append(lines, fmt.Sprintf("Asset: %s", class.Class))
	}
	if a.Reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", a.Reason))
	}
	if ev.DetectionName != "" {
		lines = append(lines, fmt.Sprintf("Detection: %s", ev.DetectionName))
	}
	if ev.ObjectPath != "" {
		lines = append(lines, fmt.Sprintf("Object: `%s`", ev.ObjectPath))
	}
	if ev.SHA256 != "" {
		lines = append(lines, fmt.Sprintf("SHA256: `%s`", ev.SHA256))
	}
	if ev.UserName != "" {
		lines = append(lines, fmt.Sprintf("User: %s", ev.UserName))
	}
	if ev.DetectedAt != nil {
		lines = append(lines, fmt.Sprintf("Time(UTC): %s", ev.DetectedAt.UTC().Format(time.RFC3339)))
	}
	if repeats > 1 {
		lines = append(lines, fmt.Sprintf("Repeats (dedup counter): %d", repeats))
	}
	return strings.Join(lines, "\n")
}
