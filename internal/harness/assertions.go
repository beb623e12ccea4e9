package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError describes a failed scenario assertion. Trace, when set,
// is printed after the mismatch.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s assertion failed\n  want: %s\n  got:  %s\n", e.Type, e.Expected, e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("\ntrace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&b, "  step %d %s active=%v satisfied=%v complete=%t\n",
			ev.Step, ev.Action, ev.Active, ev.Satisfied, ev.Complete)
	}
	return b.String()
}

func fail(kind, want, got string, trace []TraceEvent) *AssertionError {
	return &AssertionError{Type: kind, Expected: want, Actual: got, Trace: trace}
}

type checker func(*Result, Assertion) error

var checkers = map[string]checker{
	AssertUnlockOrder: func(r *Result, a Assertion) error { return assertUnlockOrder(r.Trace, a) },
	AssertHelpOffered: func(r *Result, a Assertion) error { return assertHelpOffered(r.Trace, a) },
	AssertFinalState:  func(r *Result, a Assertion) error { return assertFinalState(r.Final, a) },
}

// EvaluateAssertions runs every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		check, ok := checkers[a.Type]
		if !ok {
			failures = append(failures, fmt.Sprintf("assertion[%d]: unknown assertion type %q", i, a.Type))
			continue
		}
		if err := check(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// firstUnlock maps each rule to the step that first unlocked it.
func firstUnlock(trace []TraceEvent) map[int]int {
	at := make(map[int]int)
	for _, ev := range trace {
		for _, id := range ev.Activated {
			if _, ok := at[id]; !ok {
				at[id] = ev.Step
			}
		}
	}
	return at
}

// assertUnlockOrder passes when every listed rule was unlocked, in list
// order. Rules unlocked by the same step count as either order.
func assertUnlockOrder(trace []TraceEvent, a Assertion) error {
	at := firstUnlock(trace)
	for _, id := range a.Rules {
		if _, ok := at[id]; !ok {
			return fail(AssertUnlockOrder,
				fmt.Sprintf("rules unlocked: %v", a.Rules),
				fmt.Sprintf("rule %d was never unlocked", id), trace)
		}
	}
	for i := 1; i < len(a.Rules); i++ {
		prev, next := a.Rules[i-1], a.Rules[i]
		if at[prev] > at[next] {
			return fail(AssertUnlockOrder,
				fmt.Sprintf("rules unlocked in order: %v", a.Rules),
				fmt.Sprintf("rule %d (step %d) should be unlocked before rule %d (step %d)",
					prev, at[prev], next, at[next]), trace)
		}
	}
	return nil
}

// assertHelpOffered counts the steps where the struggle monitor opened
// help for a.Rule.
func assertHelpOffered(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if slices.Contains(ev.Helped, a.Rule) {
			n++
		}
	}
	if n != a.Count {
		return fail(AssertHelpOffered,
			fmt.Sprintf("help offered %d time(s) for rule %d", a.Count, a.Rule),
			fmt.Sprintf("%d time(s)", n), trace)
	}
	return nil
}

func assertFinalState(final TraceEvent, a Assertion) error {
	if a.Complete != nil && final.Complete != *a.Complete {
		return fail(AssertFinalState,
			fmt.Sprintf("complete = %t", *a.Complete),
			fmt.Sprintf("complete = %t", final.Complete), nil)
	}
	if a.Active != nil && !slices.Equal(final.Active, nonNilInts(*a.Active)) {
		return fail(AssertFinalState,
			fmt.Sprintf("active = %v", *a.Active),
			fmt.Sprintf("active = %v", final.Active), nil)
	}
	return nil
}
