package model

import "fmt"

// Decision is the anti-spam engine's verdict for one occurrence.
type Decision string

const (
	// DecisionDeliver opens a new window: the occurrence is sent as-is.
	DecisionDeliver Decision = "deliver"
	// DecisionSuppress drops the notification but still counts the occurrence.
	DecisionSuppress Decision = "suppress"
	// DecisionBurst is the one escalation per window summarizing repeats.
	DecisionBurst Decision = "burst"
)

// RiskLevel orders notification urgency. Recipient bindings use it as a
// minimum-severity gate.
type RiskLevel string

const (
	RiskInfo     RiskLevel = "INFO"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskRank = map[RiskLevel]int{
	RiskInfo:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Rank returns the level's position in the severity ordering. Unknown
// levels rank as INFO.
func (r RiskLevel) Rank() int {
	return riskRank[r]
}

// AtLeast reports whether r is at or above the given minimum.
func (r RiskLevel) AtLeast(min RiskLevel) bool {
	return r.Rank() >= min.Rank()
}

// ParseRiskLevel validates external risk-level input (API, config).
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(s)
	if _, ok := riskRank[r]; !ok {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}

// AssetClass is the coarse device classification used for routing and
// risk escalation.
type AssetClass string

const (
	AssetUnclassified AssetClass = "UNCLASSIFIED"
	AssetServer       AssetClass = "SERVER"
	AssetWorkstation  AssetClass = "WORKSTATION"
)

// ParseAssetClass validates external classification input.
func ParseAssetClass(s string) (AssetClass, error) {
	switch c := AssetClass(s); c {
	case AssetUnclassified, AssetServer, AssetWorkstation:
		return c, nil
	default:
		return "", fmt.Errorf("unknown asset class %q", s)
	}
}

// AssetClassification is the read-only enrichment attached to a decision
// for routing. It never influences fingerprinting or window state.
type AssetClassification struct {
	Device string     `json:"device"`
	Class  AssetClass `json:"class"`
	Owner  string     `json:"owner,omitempty"`
}

// Unclassified is the classification used for unknown devices and for
// classifier failures.
func Unclassified(device string) AssetClassification {
	return AssetClassification{Device: device, Class: AssetUnclassified}
}
