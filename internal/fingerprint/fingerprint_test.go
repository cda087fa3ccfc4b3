package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"soc-alert-relay-go/internal/model"
)

func validEvent() model.NormalizedEvent {
	return model.NormalizedEvent{
		Device:        "HOST01",
		EventType:     "Malicious object detected",
		DetectionName: "HEUR:Trojan.Win32.Generic",
		ObjectPath:    `C:\Users\admin\Downloads\invoice.exe`,
		Result:        "Blocked",
		Valid:         true,
		Reason:        model.ReasonOK,
	}
}

func TestComputeDeterministic(t *testing.T) {
	ev := validEvent()

	first, err := Compute(ev)
	assert.NoError(t, err)
	second, err := Compute(ev)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, string(first), 64)
}

func TestComputeNormalizesCaseAndWhitespace(t *testing.T) {
	a := validEvent()

	b := validEvent()
	b.Device = "  host01 "
	b.EventType = "MALICIOUS OBJECT DETECTED"
	b.DetectionName = "heur:trojan.win32.generic"

	fpA, err := Compute(a)
	assert.NoError(t, err)
	fpB, err := Compute(b)
	assert.NoError(t, err)

	assert.Equal(t, fpA, fpB)
}

func TestComputeIgnoresNonIdentityFields(t *testing.T) {
	a := validEvent()

	b := validEvent()
	now := time.Now()
	b.DetectedAt = &now
	b.RawText = "completely different raw body"
	b.ProcessName = "powershell.exe"
	b.SHA256 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	b.UserName = "CORP\\operator"
	b.VendorSeverity = "Critical"

	fpA, err := Compute(a)
	assert.NoError(t, err)
	fpB, err := Compute(b)
	assert.NoError(t, err)

	assert.Equal(t, fpA, fpB)
}

func TestComputeSeparatesFields(t *testing.T) {
	// Concatenation must not let adjacent fields bleed into each other.
	a := validEvent()
	a.Device = "ab"
	a.EventType = "c"

	b := validEvent()
	b.Device = "a"
	b.EventType = "bc"

	fpA, err := Compute(a)
	assert.NoError(t, err)
	fpB, err := Compute(b)
	assert.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestComputeDistinguishesTuples(t *testing.T) {
	a := validEvent()
	b := validEvent()
	b.ObjectPath = `C:\Windows\Temp\other.exe`

	fpA, err := Compute(a)
	assert.NoError(t, err)
	fpB, err := Compute(b)
	assert.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestComputeRejectsInvalidEvent(t *testing.T) {
	ev := validEvent()
	ev.Valid = false
	ev.Reason = model.ReasonMissingDevice

	_, err := Compute(ev)
	assert.Error(t, err)
}
