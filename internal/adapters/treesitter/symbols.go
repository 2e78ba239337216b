package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// nameKinds are the node kinds that carry a declaration's name when the
// grammar has no "name" field.
var nameKinds = []string{"identifier", "name", "field_identifier", "property_identifier", "type_identifier", "constant"}

// EnclosingSymbol returns the name of the nearest node, starting at n
// itself, whose kind is one of kinds. Anonymous declarations are skipped.
func EnclosingSymbol(n *tree_sitter.Node, source []byte, kinds []string) string {
	if n == nil || len(kinds) == 0 {
		return ""
	}
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	for cur := n; cur != nil; cur = cur.Parent() {
		if !want[cur.Kind()] {
			continue
		}
		if name := declName(cur, source); name != "" {
			return name
		}
	}
	return ""
}

func declName(n *tree_sitter.Node, source []byte) string {
	if c := n.ChildByFieldName("name"); c != nil {
		return c.Utf8Text(source)
	}
	for _, kind := range nameKinds {
		if c := childByKind(n, kind); c != nil {
			return c.Utf8Text(source)
		}
	}
	return ""
}

// childByKind finds the first child with the given kind.
func childByKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < uint(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}
