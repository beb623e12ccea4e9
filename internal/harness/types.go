package harness

// TraceEvent records one scenario step and the state it left behind.
type TraceEvent struct {
	Step      int    `json:"step"`
	Action    string `json:"action"`
	Input     string `json:"input,omitempty"` // text, duration or rule id
	Seq       int64  `json:"seq"`             // engine evaluation counter after the step
	WordCount int    `json:"word_count"`
	Active    []int  `json:"active"`
	Satisfied []int  `json:"satisfied"`
	Activated []int  `json:"activated,omitempty"`
	Helped    []int  `json:"helped,omitempty"`
	HelpOpen  []int  `json:"help_open"`
	Complete  bool   `json:"complete"`
	Border    string `json:"border"`
	Export    string `json:"export,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion matches.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the last trace event, or the starting state for a
	// scenario that failed before its first step.
	Final TraceEvent `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event and makes it the final state.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
	r.Final = ev
}
