// Package scope implements the hierarchical read/write namespaces that
// phases and actions use to exchange data during a run. Run-scoped values
// live in memory and die with the run; named "store" scopes delegate to a
// Durable backend and survive process restarts.
package scope

import (
	"fmt"
	"strings"
)

// Kind identifies a namespace family.
type Kind string

const (
	KindStatic Kind = "static"
	KindGlobal Kind = "global"
	KindPhase  Kind = "phase"
	KindTeam   Kind = "team"
	KindAction Kind = "action"
	KindStore  Kind = "store"
)

// Scope is one namespace within a run's context store. Phase, team, action,
// and store scopes carry an ID; static and global do not.
type Scope struct {
	Kind Kind
	ID   string
}

// Static is the write-once namespace populated at run start.
func Static() Scope { return Scope{Kind: KindStatic} }

// Global is the run-wide mutable namespace.
func Global() Scope { return Scope{Kind: KindGlobal} }

// Phase is the namespace owned by one phase.
func Phase(id string) Scope { return Scope{Kind: KindPhase, ID: id} }

// Team is the namespace shared by a team's actions.
func Team(id string) Scope { return Scope{Kind: KindTeam, ID: id} }

// Action is the namespace owned by one action.
func Action(id string) Scope { return Scope{Kind: KindAction, ID: id} }

// Named is a durable store namespace backing narrative state across runs.
func Named(name string) Scope { return Scope{Kind: KindStore, ID: name} }

// String renders the scope in "kind" or "kind:id" form.
func (s Scope) String() string {
	if s.ID == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.ID
}

// Durable reports whether values in this scope outlive the run.
func (s Scope) Durable() bool {
	return s.Kind == KindStore
}

// Valid reports whether the scope is well-formed: known kind, and an ID
// exactly when the kind requires one.
func (s Scope) Valid() bool {
	switch s.Kind {
	case KindStatic, KindGlobal:
		return s.ID == ""
	case KindPhase, KindTeam, KindAction, KindStore:
		return s.ID != ""
	}
	return false
}

// Parse converts "kind" or "kind:id" back into a Scope.
func Parse(s string) (Scope, error) {
	kind, id, _ := strings.Cut(s, ":")
	sc := Scope{Kind: Kind(kind), ID: id}
	if !sc.Valid() {
		return Scope{}, fmt.Errorf("scope: invalid scope %q", s)
	}
	return sc, nil
}
