// Package view projects session state into what a player sees.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/rulegate/internal/engine"
	"github.com/roach88/rulegate/internal/session"
)

// Border is the editor's border affordance.
type Border string

const (
	BorderNeutral    Border = "neutral"    // nothing typed yet
	BorderProgress   Border = "progress"   // an active rule is unsatisfied
	BorderStruggling Border = "struggling" // help was offered for an unsatisfied rule
	BorderComplete   Border = "complete"   // game won
)

// DefaultHelp is shown for rules that carry no help text.
const DefaultHelp = "Try to fulfill this rule to continue your story."

// VisibleRule is one line of the rule list.
type VisibleRule struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Satisfied   bool   `json:"satisfied"`
	Struggling  bool   `json:"struggling,omitempty"`
	Help        string `json:"help,omitempty"` // set while help is open
}

// View is the full projection of a session.
type View struct {
	Rules     []VisibleRule `json:"rules"`
	WordCount int           `json:"word_count"`
	WordLabel string        `json:"word_label"`
	Complete  bool          `json:"complete"`
	Border    Border        `json:"border"`
}

// Project builds the view: active unsatisfied rules first, then satisfied
// ones, each group in id order. Inactive rules are hidden.
func Project(st session.State) View {
	v := View{
		WordCount: st.WordCount,
		WordLabel: WordLabel(st.WordCount),
		Complete:  st.Complete,
		Rules:     []VisibleRule{},
	}

	var pending, done []VisibleRule
	struggling := false
	for _, r := range st.Rules {
		if !r.Active {
			continue
		}
		vr := VisibleRule{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Satisfied:   r.Satisfied,
		}
		if r.Satisfied {
			done = append(done, vr)
			continue
		}
		vr.Struggling = r.Struggling
		struggling = struggling || r.Struggling
		if r.HelpOpen {
			vr.Help = r.Help
			if vr.Help == "" {
				vr.Help = DefaultHelp
			}
		}
		pending = append(pending, vr)
	}
	v.Rules = append(append(v.Rules, pending...), done...)

	switch {
	case st.Complete:
		v.Border = BorderComplete
	case strings.TrimSpace(st.CurrentText) == "":
		v.Border = BorderNeutral
	case struggling:
		v.Border = BorderStruggling
	default:
		v.Border = BorderProgress
	}
	return v
}

// WordLabel renders a count as "1 word" or "N words".
func WordLabel(n int) string {
	if n == 1 {
		return "1 word"
	}
	return fmt.Sprintf("%d words", n)
}

// ChangeKind tags a Change.
type ChangeKind string

const (
	ChangeUnlocked    ChangeKind = "unlocked"
	ChangeSatisfied   ChangeKind = "satisfied"
	ChangeUnsatisfied ChangeKind = "unsatisfied"
	ChangeCompleted   ChangeKind = "completed"
	ChangeUncompleted ChangeKind = "uncompleted"
	ChangeHelp        ChangeKind = "help"
	ChangeRestarted   ChangeKind = "restarted"
)

// Change is one incremental delta for rendering.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	RuleID int        `json:"rule_id,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// Changes lists what an evaluation changed, in a stable order: unlocks,
// satisfactions, losses, then the win state.
func Changes(res engine.Result, rules []engine.Rule) []Change {
	byID := make(map[int]engine.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}
	label := func(id int) string {
		if r, ok := byID[id]; ok {
			return r.Title
		}
		return ""
	}

	var out []Change
	for _, id := range res.Activated {
		out = append(out, Change{Kind: ChangeUnlocked, RuleID: id, Text: label(id)})
	}
	for _, id := range res.Satisfied {
		out = append(out, Change{Kind: ChangeSatisfied, RuleID: id, Text: label(id)})
	}
	for _, id := range res.Unsatisfied {
		out = append(out, Change{Kind: ChangeUnsatisfied, RuleID: id, Text: label(id)})
	}
	if res.CompletionChanged() {
		if res.Complete {
			out = append(out, Change{Kind: ChangeCompleted})
		} else {
			out = append(out, Change{Kind: ChangeUncompleted})
		}
	}
	return out
}

// UpdateChanges maps any session update to its deltas.
func UpdateChanges(u session.Update) []Change {
	switch {
	case u.Event == session.EventRestart:
		return []Change{{Kind: ChangeRestarted}}
	case u.Result != nil:
		return Changes(*u.Result, u.State.Rules)
	case len(u.Helped) > 0:
		var out []Change
		for _, id := range u.Helped {
			for _, r := range u.State.Rules {
				if r.ID == id {
					help := r.Help
					if help == "" {
						help = DefaultHelp
					}
					out = append(out, Change{Kind: ChangeHelp, RuleID: id, Text: help})
				}
			}
		}
		return out
	}
	return nil
}

const banner = "*** Story complete! Export it with /export. ***"

// RenderText writes the view for a terminal.
func RenderText(w io.Writer, v View) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", v.Border, v.WordLabel)
	for _, r := range v.Rules {
		mark := "[ ]"
		if r.Satisfied {
			mark = "[x]"
		} else if r.Struggling {
			mark = "[?]"
		}
		fmt.Fprintf(&b, "%s %d. %s: %s\n", mark, r.ID, r.Title, r.Description)
		if r.Help != "" {
			fmt.Fprintf(&b, "      help: %s\n", r.Help)
		}
	}
	if v.Complete {
		b.WriteString(banner + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderChanges writes one line per change.
func RenderChanges(w io.Writer, changes []Change) error {
	var b strings.Builder
	for _, c := range changes {
		switch c.Kind {
		case ChangeCompleted:
			b.WriteString(banner + "\n")
		case ChangeUncompleted:
			b.WriteString("Story no longer complete.\n")
		case ChangeRestarted:
			b.WriteString("Game restarted.\n")
		case ChangeHelp:
			fmt.Fprintf(&b, "help for rule %d: %s\n", c.RuleID, c.Text)
		default:
			fmt.Fprintf(&b, "rule %d %s: %s\n", c.RuleID, c.Kind, c.Text)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
