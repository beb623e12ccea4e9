// Package session runs one play-through of the game.
//
// A Session owns an engine.Engine and the current story text. Text arrives
// from outside (stdin lines, a watched file) as Events on an unbounded FIFO
// queue; Run processes them one at a time on a single goroutine alongside a
// periodic help tick, so evaluation and the struggle monitor never race.
//
// Sessions are never resumed. An optional Journal receives an append-only
// audit trail that Replay uses to check evaluation is deterministic.
package session
