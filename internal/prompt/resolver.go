// Package prompt resolves action prompt templates against a run's scoped
// context store and thread ledger. Placeholders:
//
//	{{global.outline}}        one context value ("" when undefined)
//	{{phase:draft.text}}      scoped forms use kind:id
//	{{thread:phase:draft 5}}  the last 5 entries of a thread, transcribed
//
// Unknown references substitute blank text; resolution never fails, so a
// template with a dangling reference produces a degraded prompt rather than
// a dead action.
package prompt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dusk-indust/conductor/internal/ledger"
	"github.com/dusk-indust/conductor/internal/scope"
)

// DefaultTailSize bounds thread placeholders that omit a count.
const DefaultTailSize = 10

var (
	// {{scope.key}} with an optional :id on the scope.
	refPattern = regexp.MustCompile(`\{\{\s*([a-z]+(?::[\w.-]+)?)\.([\w-]+)\s*\}\}`)

	// {{thread:<id> <n>}} with the count optional.
	threadPattern = regexp.MustCompile(`\{\{\s*thread:([\w:.-]+?)(?:\s+(\d+))?\s*\}\}`)
)

// Resolver substitutes placeholders using one run's store and ledger.
type Resolver struct {
	store  *scope.Store
	ledger *ledger.Ledger
}

// NewResolver creates a Resolver over the given store and ledger.
func NewResolver(s *scope.Store, l *ledger.Ledger) *Resolver {
	return &Resolver{store: s, ledger: l}
}

// Resolve substitutes every placeholder in tmpl.
func (r *Resolver) Resolve(tmpl string) string {
	// Thread placeholders first: their IDs may contain dots, which would
	// otherwise be misparsed as scope references.
	out := threadPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		groups := threadPattern.FindStringSubmatch(m)
		threadID := groups[1]
		n := DefaultTailSize
		if groups[2] != "" {
			if parsed, err := strconv.Atoi(groups[2]); err == nil {
				n = parsed
			}
		}
		return r.transcribeTail(threadID, n)
	})

	return refPattern.ReplaceAllStringFunc(out, func(m string) string {
		groups := refPattern.FindStringSubmatch(m)
		sc, err := scope.Parse(groups[1])
		if err != nil {
			return ""
		}
		return r.store.Get(sc, groups[2])
	})
}

// transcribeTail renders the last n entries of a thread as "speaker: content"
// lines, oldest first.
func (r *Resolver) transcribeTail(threadID string, n int) string {
	entries := r.ledger.Tail(threadID, n)
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s", e.SpeakerID, e.Content)
	}
	return sb.String()
}
