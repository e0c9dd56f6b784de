package yang

import (
	"strings"
)

// DataNode is one node of an instance tree.
type DataNode struct {
	Schema   *SchemaNode
	Value    string
	Parent   *DataNode
	Children []*DataNode
}

// AddChild appends c under n and returns c.
func (n *DataNode) AddChild(c *DataNode) *DataNode {
	c.Parent = n
	n.Children = append(n.Children, c)
	return c
}

// Path returns the data path of n, with key predicates for list instances
// and value predicates for leaf-list items.
func (n *DataNode) Path() string {
	var chain []*DataNode
	for cur := n; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	var b strings.Builder
	for i := len(chain) - 1; i >= 0; i-- {
		var parent *SchemaNode
		if chain[i].Parent != nil {
			parent = chain[i].Parent.Schema
		}
		formatStep(&b, chain[i], parent)
	}
	return b.String()
}

// IsDefault reports whether n is a leaf whose value equals its effective
// default.
func (n *DataNode) IsDefault() bool {
	if n.Schema.Kind != KindLeaf {
		return false
	}
	def, ok := n.Schema.EffectiveDefault()
	return ok && def == n.Value
}

func (n *DataNode) schema() *SchemaNode { return n.Schema }

func (n *DataNode) selfValue() (string, bool) {
	return n.Value, n.Schema.Kind.Terminal()
}

func (n *DataNode) childValue(name string) (string, bool) {
	for _, c := range n.Children {
		if c.Schema.Name == name && c.Schema.Kind.Terminal() {
			return c.Value, true
		}
	}
	return "", false
}

// DataTree is an instance tree with possibly several roots.
type DataTree struct {
	Roots []*DataNode
}

// AddRoot appends a top-level node.
func (t *DataTree) AddRoot(n *DataNode) *DataNode {
	n.Parent = nil
	t.Roots = append(t.Roots, n)
	return n
}

// Find returns every node matching path, in document order.
func (t *DataTree) Find(path string) ([]*DataNode, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	var matched []*DataNode
	for _, r := range t.Roots {
		if matchStep(r, steps[0]) {
			matched = append(matched, r)
		}
	}
	for _, s := range steps[1:] {
		var next []*DataNode
		for _, m := range matched {
			for _, c := range m.Children {
				if matchStep(c, s) {
					next = append(next, c)
				}
			}
		}
		matched = next
	}
	return matched, nil
}
