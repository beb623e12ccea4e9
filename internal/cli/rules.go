package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rulegate/internal/catalog"
	"github.com/roach88/rulegate/internal/compiler"
	"github.com/roach88/rulegate/internal/ir"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	flags  gameFlags
	List   bool   // list catalog names only
	Output string // output file path
}

// RulesResult is the JSON payload of the rules command.
type RulesResult struct {
	RuleSet ir.RuleSet `json:"rule_set"`
	Hash    string     `json:"hash"`
	Initial int        `json:"initial"`
}

// CatalogResult is the JSON payload of rules --list.
type CatalogResult struct {
	Names   []string `json:"names"`
	Default string   `json:"default"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print a compiled rule set",
		Long: `Compile a rule set and print its rules and progression.

The rule set comes from the built-in catalog (--catalog) or a directory of
CUE files (--rules). With --output the compiled rule set is also written
as JSON.

Examples:
  rulegate rules
  rulegate rules --list
  rulegate rules --rules ./my-rules --output ruleset.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	addRuleSetFlags(cmd, &opts.flags)
	cmd.Flags().BoolVar(&opts.List, "list", false, "list the built-in rule sets")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if opts.List {
		return outputCatalog(formatter)
	}

	cfg := opts.flags.resolve(cmd, opts.Settings())
	rs, findings, err := ResolveRuleSet(cfg.Catalog, cfg.RulesDir)
	if err != nil {
		code, message := parseLoadError(err)
		_ = formatter.Error(code, message, nil)
		return err
	}
	for _, w := range findings {
		formatter.VerboseLog("warning %s: %s: %s", w.Code, w.Field, w.Message)
	}

	hash, err := ir.RuleSetHash(rs)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash rule set", err)
	}
	result := RulesResult{RuleSet: rs, Hash: hash, Initial: rs.InitialID()}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeRuleSetToFile(rs, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write rule set", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputRulesText(formatter, result, opts.Output)
}

func outputCatalog(formatter *OutputFormatter) error {
	names := catalog.Names()
	if formatter.Format == "json" {
		return formatter.Success(CatalogResult{Names: names, Default: catalog.Default})
	}
	for _, n := range names {
		marker := " "
		if n == catalog.Default {
			marker = "*"
		}
		fmt.Fprintf(formatter.Writer, "%s %s\n", marker, n)
	}
	return nil
}

// outputRulesText prints one line per rule, in id order.
func outputRulesText(formatter *OutputFormatter, result RulesResult, outputFile string) error {
	rs := result.RuleSet
	w := formatter.Writer

	fmt.Fprintf(w, "✓ %s: %d rule(s), starts at %d, terminal %d\n", rs.Name, len(rs.Rules), result.Initial, rs.TerminalID())
	fmt.Fprintf(w, "Hash: %s\n\n", result.Hash)

	for _, r := range rs.Rules {
		fmt.Fprintf(w, "  %d. %s [%s]%s\n", r.ID, r.Title, describeValidator(r.Validator), describeUnlocks(r, rs.TerminalID()))
		fmt.Fprintf(w, "     %s\n", r.Description)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote rule set to %s\n", outputFile)
	}
	return nil
}

func describeValidator(v ir.ValidatorSpec) string {
	if len(v.Children) == 0 {
		return string(v.Kind)
	}
	parts := make([]string, len(v.Children))
	for i, c := range v.Children {
		parts[i] = describeValidator(c)
	}
	return string(v.Kind) + "(" + strings.Join(parts, ", ") + ")"
}

func describeUnlocks(r ir.RuleSpec, terminal int) string {
	if r.ID == terminal {
		return " (terminal)"
	}
	if len(r.Unlocks) == 0 {
		return ""
	}
	ids := make([]string, len(r.Unlocks))
	for i, id := range r.Unlocks {
		ids[i] = strconv.Itoa(id)
	}
	return " → " + strings.Join(ids, ", ")
}

// parseLoadError extracts error code and message from a resolve error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, validationErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeRuleSetToFile writes the compiled rule set as indented JSON.
func writeRuleSetToFile(rs ir.RuleSet, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rule set: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
