package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/rulegate/internal/ir"
)

// timeLayout stores wall times as fixed-width UTC text so they sort
// lexically. Times are informational only; ordering always uses seq.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// marshalOutcome converts an outcome to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so the stored bytes match what was hashed.
func marshalOutcome(o ir.Outcome) (string, error) {
	data, err := ir.MarshalCanonical(o.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("marshal outcome: %w", err)
	}
	return string(data), nil
}

// unmarshalOutcome parses canonical JSON TEXT back into an outcome.
func unmarshalOutcome(data string) (ir.Outcome, error) {
	var o ir.Outcome
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return ir.Outcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return o, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
