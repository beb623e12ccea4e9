package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	GoldenDir string // golden directory (default: golden/ next to each scenario)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-glob>...",
		Short: "Run scenario files through the harness",
		Long: `Run YAML play-through scenarios.

Each argument is a scenario file, a directory (searched recursively for
.yaml and .yml files) or a doublestar glob such as "testdata/**/*.yaml".
Each scenario's steps, expectations and assertions are checked, the
journal is replayed for determinism, and the trace is compared with its
golden file when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad glob, etc.)

Examples:
  rulegate test ./scenarios
  rulegate test "scenarios/**/struggle_*.yaml"
  rulegate test ./scenarios --golden ./golden --update
  rulegate test ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden traces")

	return cmd
}

func runTests(opts *TestOptions, patterns []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	scenarioFiles, err := findScenarioFiles(patterns)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, opts)
		if opts.Format != "json" {
			printScenarioResult(formatter, scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// findScenarioFiles expands every pattern into scenario paths, sorted and
// deduplicated.
func findScenarioFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			pattern = filepath.Join(pattern, "**", "*.{yaml,yml}")
		} else if err == nil {
			add(pattern)
			continue
		}

		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(files)
	return files, nil
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, opts *TestOptions) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(scenarioFile), File: scenarioFile}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}

	trace, err := harness.TraceBytes(scenario.Name, result.Trace)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to render trace: %v", err)}
		return res
	}
	goldenPath := goldenFilePath(scenarioFile, scenario.Name, opts.GoldenDir)

	switch {
	case opts.Update:
		if err := updateGoldenFile(goldenPath, trace); err != nil {
			res.Errors = []string{fmt.Sprintf("failed to update golden file: %v", err)}
			return res
		}
		res.Golden = "updated"

	default:
		golden, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// No golden file - use assertion-based validation only
			res.Golden = "missing"
		case err != nil:
			res.Errors = []string{fmt.Sprintf("failed to read golden file: %v", err)}
			return res
		case !bytes.Equal(golden, trace):
			res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
		default:
			res.Golden = "match"
		}
	}

	res.Errors = append(res.Errors, result.Errors...)
	res.Pass = result.Pass && len(res.Errors) == 0
	return res
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile, name, goldenDir string) string {
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(scenarioFile), "golden")
	}
	return filepath.Join(goldenDir, name+".golden")
}

// updateGoldenFile writes the current trace as the golden file.
func updateGoldenFile(goldenPath string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, trace, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScenarioResult(formatter *OutputFormatter, res ScenarioResult) {
	w := formatter.Writer
	if !res.Pass {
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if res.Golden == "updated" {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", res.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", res.Name)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.JSON(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
