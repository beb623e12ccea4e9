// Package harness runs YAML play-through scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rule_set: future-education     # built-in catalog name, or
//	rules: ../rules/robot.cue      # a rule-set file relative to the scenario
//	struggle_after: 20s            # optional engine overrides
//	help_duration: 8s
//	sticky: false
//	steps:
//	  - text: "a whole snapshot"
//	    expect: { active: [1, 2], satisfied: [1], complete: false }
//	  - append: "one more line"
//	  - advance: 21s
//	  - help_tick: true
//	    expect: { helped: [2], border: struggling }
//	  - show_help: 2
//	  - hide_help: 2
//	  - export: { raw: false, force: false }
//	    expect: { error: not_complete }
//	  - restart: true
//	assertions:
//	  - type: unlock_order
//	    rules: [2, 3]
//	  - type: help_offered
//	    rule: 2
//	    count: 1
//	  - type: final_state
//	    complete: false
//	    active: [1]
//
// Each step performs exactly one action. Step expectations use subset
// semantics: only the fields present are checked.
//
// # Deterministic Testing
//
// Every scenario runs with a fake wall clock starting at testutil.Epoch
// and a fixed session id, so the trace of a scenario is byte-identical
// across runs and can be compared against a golden file.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/progression.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
