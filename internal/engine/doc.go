// Package engine implements the rule progression engine.
//
// An Engine owns the state table for one rule set. Each call to Evaluate
// re-validates every active rule against a complete text snapshot, unlocks
// successors of rules that just became satisfied, and recomputes the win
// condition.
//
// ARCHITECTURE:
//
// Synchronous, single-threaded:
// The engine has no goroutines and no locks. Callers that receive text from
// several sources (a reader, a file watcher, a help ticker) serialize them
// through one goroutine; see package session.
//
// Evaluation Flow:
//  1. Every active rule is validated, in id order
//  2. A rule flipping unsatisfied→satisfied activates its successors
//  3. Steps 1-2 repeat until nothing new activates (fixpoint)
//  4. Completion is recomputed from the final table
//
// Because evaluation runs to a fixpoint, evaluating the same text twice in a
// row never changes state the second time.
//
// PATTERNS:
//
// Logical ordering: every evaluation is stamped from Sequence.Next().
// Wall time (Clock) is used only for help bookkeeping, never for ordering.
//
// Monotonic activation: once active, a rule stays active until Restart.
// Losing satisfaction never revokes what it unlocked.
package engine
