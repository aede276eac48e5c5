package infer

import (
	"context"
	"fmt"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Binding reports how a node's code binds its own name, without running it.
type Binding struct {
	// Value is true when the name appears as a top-level assignment target.
	Value bool
	// Callable is true when the name is defined via def or class.
	Callable bool
}

// Bound reports whether the code binds anything under the name at all.
func (b Binding) Bound() bool {
	return b.Value || b.Callable
}

// BindsName checks the structural pre-condition of node execution: running
// the code must leave a value (or callable) available under exactly the
// node's name. Malformed code degrades to a line-pattern check.
func (inf *Inferencer) BindsName(ctx context.Context, code, name string) Binding {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(code)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err == nil {
		defer tree.Close()

		root := tree.RootNode()
		if root != nil && !root.HasError() {
			return collectBinding(root, content, name)
		}
	}

	return lexicalBinding(code, name)
}

func collectBinding(n *sitter.Node, content []byte, name string) Binding {
	var binding Binding

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Type() {
		case "assignment", "augmented_assignment", "named_expression":
			if target := assignedName(node, content); target == name {
				binding.Value = true
			}
		case "function_definition", "class_definition":
			if nameNode := node.ChildByFieldName("name"); nameNode != nil && nameNode.Content(content) == name {
				binding.Callable = true
			}
		}

		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}

	walk(n)

	return binding
}

// assignedName returns the bare identifier target of an assignment, or ""
// when the target is a subscript, attribute, or pattern.
func assignedName(node *sitter.Node, content []byte) string {
	field := "left"
	if node.Type() == "named_expression" {
		field = "name"
	}

	target := node.ChildByFieldName(field)
	if target == nil || target.Type() != "identifier" {
		return ""
	}

	return target.Content(content)
}

func lexicalBinding(code, name string) Binding {
	quoted := regexp.QuoteMeta(name)

	return Binding{
		Value:    regexp.MustCompile(fmt.Sprintf(`(?m)^\s*%s\s*=[^=]`, quoted)).MatchString(code),
		Callable: regexp.MustCompile(fmt.Sprintf(`(?m)^\s*(def|class)\s+%s\b`, quoted)).MatchString(code),
	}
}
