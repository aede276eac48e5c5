// Package graph error types. Planning failures are typed so callers can
// distinguish "your graph is malformed" from "you asked about a node that
// does not exist".
package graph

import (
	"fmt"
	"strings"
)

// UnknownNodeError reports a query about an id that was never declared.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.ID)
}

// StructuralError reports dependency ids inside a target's closure that
// reference non-existent nodes. Fatal only to queries touching the bad
// node, not to the graph as a whole.
type StructuralError struct {
	Target  string
	Unknown []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("node %q depends on unknown nodes: %s", e.Target, strings.Join(e.Unknown, ", "))
}

// CycleError reports a dependency cycle. Static cycles are found before
// any execution by graph analysis; dynamic cycles are found mid-recursion
// by the execution stack, because edges are only fully known after each
// node's code has been analyzed in turn.
type CycleError struct {
	Path    []string
	Dynamic bool
}

func (e *CycleError) Error() string {
	flavor := "static"
	if e.Dynamic {
		flavor = "dynamic"
	}

	return fmt.Sprintf("%s dependency cycle: %s", flavor, strings.Join(e.Path, " -> "))
}
