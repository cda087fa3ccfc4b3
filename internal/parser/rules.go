package parser

import (
	"regexp"
	"strings"
)

// field identifies the normalized-event field an extraction rule fills.
type field int

const (
	fieldDevice field = iota
	fieldEventType
	fieldDetectionName
	fieldObjectPath
	fieldResult
	fieldProcessName
	fieldSHA256
	fieldUserName
	fieldVendorSeverity
	fieldDetectedAt
)

// labelRule maps a set of label aliases to one event field. Rules are an
// explicit ordered table rather than conditional branching; for each field
// the first matching label in document order wins. Aliases cover the
// English and Russian vendor mail templates.
type labelRule struct {
	field  field
	labels []string
}

var labelRules = []labelRule{
	{fieldDevice, []string{"device", "computer", "host", "hostname", "устройство"}},
	{fieldEventType, []string{"тип события", "event type", "event", "тип"}},
	{fieldDetectionName, []string{"detection name", "threat name", "malware name", "название угрозы"}},
	{fieldObjectPath, []string{"объект", "object", "object path", "file", "path"}},
	{fieldResult, []string{"описание результата", "result", "action", "status", "результат"}},
	{fieldProcessName, []string{"process", "process name", "процесс"}},
	{fieldSHA256, []string{"sha256", "sha-256", "hash", "хеш"}},
	{fieldUserName, []string{"пользователь", "user", "account"}},
	{fieldVendorSeverity, []string{"severity", "vendor severity", "уровень опасности"}},
	{fieldDetectedAt, []string{"дата и время события", "event time", "time", "date", "дата/время", "время события"}},
}

// nameLabels collect every occurrence instead of the first: Russian vendor
// mails reuse a bare "Название:" label for both the process and the threat.
var nameLabels = []string{"название", "name"}

var (
	kvLineRe = regexp.MustCompile(`^\s*([^:\n]{2,80})\s*:\s*(.*)$`)

	// Fallbacks for mails that phrase fields in prose instead of labels.
	// The severity word class spells out Unicode letters: the vendor writes
	// "Критическое", which plain \w does not cover.
	deviceFallbackRe  = regexp.MustCompile(`(?i)произошло на устройстве\s+([A-Za-z0-9_.-]+)`)
	severityPhraseRe  = regexp.MustCompile(`(?i)произошло\s+([\p{L}0-9_]+)\s+событие`)
	quotedEventTypeRe = regexp.MustCompile(`(?i)событие\s+"([^"]+)"`)
	sha256FallbackRe  = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)

	executableRe = regexp.MustCompile(`\.(exe|dll|sys|bat|ps1)\b`)
	libraryRe    = regexp.MustCompile(`\.(exe|dll|sys)\b`)
)

var detectionPrefixes = []string{
	"heur:", "trojan.", "trojan:", "not-a-virus:", "virus.", "worm.", "exploit.",
}

// kvPair is one "label: value" line, key lowercased, in document order.
type kvPair struct {
	key string
	val string
}

// scanKVPairs extracts every label/value line, preserving order and
// duplicates. Lines without a usable label or with an empty value are
// ignored.
func scanKVPairs(text string) []kvPair {
	var out []kvPair
	for _, line := range strings.Split(text, "\n") {
		m := kvLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		val := strings.TrimSpace(m[2])
		if key != "" && val != "" {
			out = append(out, kvPair{key: key, val: val})
		}
	}
	return out
}

// firstMatch returns the first value in document order whose label is one
// of the rule's aliases.
func firstMatch(pairs []kvPair, labels []string) string {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	for _, p := range pairs {
		if set[p.key] {
			return p.val
		}
	}
	return ""
}

// allMatches returns every value carrying one of the labels, in order.
func allMatches(pairs []kvPair, labels []string) []string {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	var out []string
	for _, p := range pairs {
		if set[p.key] {
			out = append(out, p.val)
		}
	}
	return out
}

// splitProcessAndDetection disambiguates the generic name labels: a value
// with an executable extension is the process, a value with a vendor
// detection prefix (or a colon and no library extension) is the detection.
// When neither shape matches, the last non-executable name is taken as the
// detection so a lone signature line still classifies.
func splitProcessAndDetection(names []string) (process, detection string) {
	for _, n := range names {
		if process == "" && executableRe.MatchString(strings.ToLower(n)) {
			process = strings.TrimSpace(n)
		}
	}

	for _, n := range names {
		if detection != "" {
			break
		}
		nn := strings.TrimSpace(n)
		low := strings.ToLower(nn)
		if hasDetectionPrefix(low) {
			detection = nn
			continue
		}
		if strings.Contains(nn, ":") && !libraryRe.MatchString(low) {
			detection = nn
		}
	}

	if detection == "" && process == "" && len(names) > 0 {
		detection = strings.TrimSpace(names[len(names)-1])
	}
	if detection == "" {
		for i := len(names) - 1; i >= 0; i-- {
			if !libraryRe.MatchString(strings.ToLower(names[i])) {
				detection = strings.TrimSpace(names[i])
				break
			}
		}
	}
	return process, detection
}

func hasDetectionPrefix(low string) bool {
	for _, p := range detectionPrefixes {
		if strings.HasPrefix(low, p) {
			return true
		}
	}
	return false
}
