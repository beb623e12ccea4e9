// Package ir provides the compiled rule-set representation for rulegate.
//
// A rule set is an ordered list of rule definitions, each carrying a tagged
// validator spec and the ids it unlocks once satisfied. The compiler package
// produces these values from CUE; the engine consumes them.
//
// This package contains type definitions and canonical serialization only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Rule ids are plain ints and define evaluation order
//   - Validator specs are data, never closures
//   - All JSON tags use snake_case
//   - Hashes use canonical JSON and SHA-256 with domain separation
package ir
