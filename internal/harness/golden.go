package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rulegate/internal/ir"
)

// canonicalMap converts a trace event to canonical-JSON-safe values.
// Optional fields are omitted when empty so goldens stay short.
func (e TraceEvent) canonicalMap() map[string]any {
	m := map[string]any{
		"step":       e.Step,
		"action":     e.Action,
		"seq":        e.Seq,
		"word_count": e.WordCount,
		"active":     nonNilInts(e.Active),
		"satisfied":  nonNilInts(e.Satisfied),
		"help_open":  nonNilInts(e.HelpOpen),
		"complete":   e.Complete,
		"border":     e.Border,
	}
	if e.Input != "" {
		m["input"] = e.Input
	}
	if len(e.Activated) > 0 {
		m["activated"] = e.Activated
	}
	if len(e.Helped) > 0 {
		m["helped"] = e.Helped
	}
	if e.Export != "" {
		m["export"] = e.Export
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// TraceBytes renders a trace for golden comparison: a header line with
// the scenario name, then one canonical JSON object per step.
func TraceBytes(scenarioName string, trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer
	header, err := ir.MarshalCanonical(map[string]any{"scenario_name": scenarioName})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')
	for _, event := range trace {
		line, err := ir.MarshalCanonical(event.canonicalMap())
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", event.Step, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs scenario and checks its trace against
// testdata/golden/<name>.golden. Pass -update to go test to rewrite it.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden checks an existing result's trace against its golden file.
// A mismatch fails t; only rendering problems are returned.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := TraceBytes(scenarioName, result.Trace)
	if err != nil {
		return err
	}
	goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, scenarioName, data)
	return nil
}
