// Package infer discovers the dependency edges implied by a node's code:
// the subset of known node identifiers the code reads. Assignment targets
// do not count; a node binds its own name by definition, so its own id is
// always dropped.
//
// The primary path parses the code with tree-sitter's Python grammar and
// collects identifiers in read context only. When the code is malformed the
// package degrades to a lexical token scan that cannot tell reads from
// writes; that over-reporting is accepted as a documented best-effort
// fallback.
package infer

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Inferencer resolves a node's provisional dependency set from code text.
// Safe for concurrent use: each Infer call creates its own parser.
type Inferencer struct {
	stoplist map[string]bool
}

// New creates an Inferencer with the default stoplist of common
// library aliases and builtins.
func New() *Inferencer {
	return &Inferencer{stoplist: defaultStoplist()}
}

// Infer returns the subset of allNodeIDs referenced (not merely assigned)
// by code, minus nodeID itself and minus the stoplist, sorted. Explicit
// declarations always win: a non-empty explicitDeps is returned verbatim.
func (inf *Inferencer) Infer(ctx context.Context, nodeID, code string, allNodeIDs, explicitDeps []string) []string {
	if len(explicitDeps) > 0 {
		return explicitDeps
	}

	reads, ok := inf.parseReads(ctx, code)
	if !ok {
		reads = lexicalIdentifiers(code)
	}

	known := make(map[string]bool, len(allNodeIDs))
	for _, id := range allNodeIDs {
		known[id] = true
	}

	deps := make([]string, 0, len(reads))

	for name := range reads {
		if name == nodeID || !known[name] || inf.stoplist[name] {
			continue
		}

		deps = append(deps, name)
	}

	sort.Strings(deps)

	return deps
}

// parseReads collects identifiers used in read context via tree-sitter.
// Returns ok=false when the code cannot be parsed cleanly, signalling the
// caller to fall back to the lexical scan.
func (inf *Inferencer) parseReads(ctx context.Context, code string) (map[string]bool, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(code)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, false
	}

	reads := make(map[string]bool)
	collectReads(root, content, reads)

	return reads, true
}

func collectReads(n *sitter.Node, content []byte, reads map[string]bool) {
	if n.Type() == "identifier" && isRead(n) {
		reads[n.Content(content)] = true
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectReads(n.NamedChild(i), content, reads)
	}
}

// isRead classifies one identifier occurrence. An identifier is a read
// unless it sits in a binding position: an assignment target, a def/class
// name, a parameter, an import clause, a loop target, an attribute name,
// a keyword-argument name, or a global/nonlocal declaration.
func isRead(n *sitter.Node) bool {
	if insideImport(n) {
		return false
	}

	parent := n.Parent()
	if parent == nil {
		return true
	}

	switch parent.Type() {
	case "assignment", "augmented_assignment", "for_statement", "for_in_clause":
		return !fieldIs(parent, "left", n)
	case "named_expression":
		return !fieldIs(parent, "name", n)
	case "function_definition", "class_definition":
		return !fieldIs(parent, "name", n)
	case "keyword_argument":
		return !fieldIs(parent, "name", n)
	case "attribute":
		// obj.attr reads obj; attr is a member name, not a variable.
		return !fieldIs(parent, "attribute", n)
	case "default_parameter", "typed_default_parameter":
		// def f(x=y): x binds, y reads.
		return !fieldIs(parent, "name", n)
	case "pattern_list", "tuple_pattern", "list_pattern":
		// a, b = ... and for a, b in ...: bare names in target patterns.
		return false
	case "parameters", "lambda_parameters", "typed_parameter":
		return false
	case "as_pattern_target":
		return false
	case "global_statement", "nonlocal_statement":
		return false
	}

	return true
}

func fieldIs(parent *sitter.Node, field string, n *sitter.Node) bool {
	child := parent.ChildByFieldName(field)

	return child != nil && child.Equal(n)
}

func insideImport(n *sitter.Node) bool {
	for anc := n.Parent(); anc != nil; anc = anc.Parent() {
		switch anc.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			return true
		}
	}

	return false
}
