// Package validator implements the text validators behind each rule.
//
// Validators are built once from an ir.ValidatorSpec and are pure, total
// functions of the text: they never return errors and never panic on any
// input (empty, whitespace-only, arbitrarily long). Parameter problems are
// reported by Build, at rule-set load time, never during play.
//
// Matching is case-insensitive using Unicode case folding
// (golang.org/x/text/cases), so "AI Tutor", "ai tutor" and "AI TUTOR" are
// treated alike.
package validator
