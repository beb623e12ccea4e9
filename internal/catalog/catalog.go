// Package catalog holds the built-in rule sets.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/rulegate/internal/compiler"
	"github.com/roach88/rulegate/internal/ir"
)

// Default is the rule set used when none is named.
const Default = "future-education"

//go:embed rulesets/*.cue
var files embed.FS

var (
	loadOnce sync.Once
	compiled map[string]*ir.RuleSet
	loadErr  error
)

// compileAll compiles every embedded file once. A broken embedded rule set is
// a build defect, so the first error is kept and returned by every call.
func compileAll() {
	compiled = make(map[string]*ir.RuleSet)
	entries, err := fs.ReadDir(files, "rulesets")
	if err != nil {
		loadErr = fmt.Errorf("read embedded rule sets: %w", err)
		return
	}
	for _, e := range entries {
		name := path.Join("rulesets", e.Name())
		src, err := files.ReadFile(name)
		if err != nil {
			loadErr = fmt.Errorf("read %s: %w", name, err)
			return
		}
		rs, err := compiler.CompileBytes(name, src)
		if err != nil {
			loadErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		if errs := compiler.Errors(compiler.ValidateRuleSet(rs)); len(errs) > 0 {
			loadErr = fmt.Errorf("validate %s: %w", name, errs[0])
			return
		}
		if _, dup := compiled[rs.Name]; dup {
			loadErr = fmt.Errorf("duplicate embedded rule set %q", rs.Name)
			return
		}
		compiled[rs.Name] = rs
	}
}

// Names lists the built-in rule sets in alphabetical order.
func Names() []string {
	loadOnce.Do(compileAll)
	names := make([]string, 0, len(compiled))
	for n := range compiled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load returns a copy of the named built-in rule set.
func Load(name string) (ir.RuleSet, error) {
	loadOnce.Do(compileAll)
	if loadErr != nil {
		return ir.RuleSet{}, loadErr
	}
	rs, ok := compiled[name]
	if !ok {
		return ir.RuleSet{}, fmt.Errorf("unknown rule set %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	out := rs.Sorted()
	for i := range out.Rules {
		out.Rules[i].Unlocks = slices.Clone(out.Rules[i].Unlocks)
	}
	return out, nil
}
