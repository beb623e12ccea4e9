package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/rulegate/internal/catalog"
	"github.com/roach88/rulegate/internal/compiler"
	"github.com/roach88/rulegate/internal/ir"
)

// LoadResult contains a rule set loaded from a directory.
type LoadResult struct {
	RuleSet   *ir.RuleSet
	Findings  []compiler.ValidationError // errors and warnings, not fail-fast
	CUEValue  cue.Value                  // The raw CUE value for additional processing
	FileCount int                        // Number of CUE files found
}

// LoadError represents an error that occurred while loading a rule set.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
// Rule-set validation codes (E101-E111, W101) come from the compiler.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeScanError      = "E002" // Directory scan error
	ErrCodeNoFiles        = "E003" // No CUE files found
	ErrCodeLoadFailed     = "E004" // CUE load failed
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeBuildFailed    = "E006" // CUE build failed
	ErrCodeWriteFailed    = "E007" // File write error
	ErrCodeUnknownRuleSet = "E008" // Catalog has no such rule set
	ErrCodeNotComplete    = "E009" // Export requested before the story is won
	ErrCodeUnknownRule    = "E010" // Help requested for a rule id not in the set
)

// LoadRuleSet loads, compiles and validates the CUE files in dir.
//
// Structural problems (missing directory, no files, CUE syntax or schema
// errors) are returned as a *LoadError. Semantic findings are returned in
// LoadResult.Findings; the caller decides whether they are fatal. RuleSet is
// nil when compilation failed.
func LoadRuleSet(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}

	rs, err := compiler.CompileRuleSet(value)
	if err != nil {
		return result, convertCompileError(err)
	}
	result.RuleSet = rs
	result.Findings = compiler.ValidateRuleSet(rs)
	return result, nil
}

// FindCUEFiles returns the .cue files under dir, at any depth, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	files, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.cue"), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ResolveRuleSet returns the rule set named by a rules directory or, when
// rulesDir is empty, by catalog name (default: catalog.Default). Semantic
// errors in a directory rule set are fatal here; warnings are returned for
// display.
func ResolveRuleSet(catalogName, rulesDir string) (ir.RuleSet, []compiler.ValidationError, error) {
	if rulesDir == "" {
		if catalogName == "" {
			catalogName = catalog.Default
		}
		rs, err := catalog.Load(catalogName)
		if err != nil {
			loadErr := &LoadError{Code: ErrCodeUnknownRuleSet, Message: err.Error()}
			return ir.RuleSet{}, nil, WrapExitError(ExitCommandError, "failed to load rule set", loadErr)
		}
		return rs, nil, nil
	}

	result, err := LoadRuleSet(rulesDir)
	if err != nil {
		return ir.RuleSet{}, nil, WrapExitError(ExitCommandError, "failed to load rule set", err)
	}
	if errs := compiler.Errors(result.Findings); len(errs) > 0 {
		return ir.RuleSet{}, result.Findings, WrapExitError(ExitCommandError, "invalid rule set", errs[0])
	}
	return *result.RuleSet, result.Findings, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return compiler.ErrRuleSetNameEmpty
	case "rules":
		return compiler.ErrRuleSetEmpty
	case "id":
		return compiler.ErrInvalidRuleID
	case "title", "description":
		return compiler.ErrMissingText
	case "validator":
		return compiler.ErrInvalidValidator
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
