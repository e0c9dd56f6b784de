package yang

import (
	"fmt"
	"strings"
)

// Well-known XML namespaces of edit attributes.
const (
	NetconfBaseNS = "urn:ietf:params:xml:ns:netconf:base:1.0"
	YangMetaNS    = "urn:ietf:params:xml:ns:yang:1"
)

// Attribute owners understood by the XML writer.
const (
	AttrNetconf = "ietf-netconf"
	AttrYang    = "yang"
)

// Operation is an edit-config operation attribute value.
type Operation string

const (
	OpMerge   Operation = "merge"
	OpCreate  Operation = "create"
	OpReplace Operation = "replace"
	OpDelete  Operation = "delete"
	OpRemove  Operation = "remove"
)

// InsertPosition is the yang:insert attribute value.
type InsertPosition string

const (
	InsertFirst  InsertPosition = "first"
	InsertLast   InsertPosition = "last"
	InsertBefore InsertPosition = "before"
	InsertAfter  InsertPosition = "after"
)

// Valid reports whether p is one of the four insert positions.
func (p InsertPosition) Valid() bool {
	switch p {
	case InsertFirst, InsertLast, InsertBefore, InsertAfter:
		return true
	}
	return false
}

// NeedsAnchor reports whether p is relative to a sibling.
func (p InsertPosition) NeedsAnchor() bool {
	return p == InsertBefore || p == InsertAfter
}

// Attr is a metadata attribute on an edit node, e.g. ietf-netconf:operation.
type Attr struct {
	Module string
	Name   string
	Value  string
}

// EditNode is one node of an edit-config payload.
type EditNode struct {
	Schema   *SchemaNode
	Value    string
	HasValue bool
	Attrs    []Attr
	Parent   *EditNode
	Children []*EditNode
}

// SetValue assigns a terminal value.
func (n *EditNode) SetValue(v string) {
	n.Value = v
	n.HasValue = true
}

// SetAttr sets or replaces an attribute.
func (n *EditNode) SetAttr(module, name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Module == module && n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Module: module, Name: name, Value: value})
}

// Attr returns an attribute value.
func (n *EditNode) Attr(module, name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Module == module && a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetOperation sets the ietf-netconf:operation attribute.
func (n *EditNode) SetOperation(op Operation) {
	n.SetAttr(AttrNetconf, "operation", string(op))
}

// NewChild creates a child node. An empty module resolves the child within
// the parent's module first.
func (n *EditNode) NewChild(module, name string, value *string) (*EditNode, error) {
	sn := n.Schema.Child(module, name)
	if sn == nil {
		return nil, fmt.Errorf("%s has no child %q", n.Schema.Path(), name)
	}
	c := &EditNode{Schema: sn, Parent: n}
	if value != nil {
		if !sn.Kind.Terminal() {
			return nil, fmt.Errorf("cannot assign a value to %s %s", sn.Kind, sn.Path())
		}
		c.SetValue(*value)
	}
	n.Children = append(n.Children, c)
	return c, nil
}

// Path returns the data path of n.
func (n *EditNode) Path() string {
	var chain []*EditNode
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

func (n *EditNode) schema() *SchemaNode { return n.Schema }

func (n *EditNode) selfValue() (string, bool) {
	return n.Value, n.HasValue && n.Schema.Kind.Terminal()
}

func (n *EditNode) childValue(name string) (string, bool) {
	for _, c := range n.Children {
		if c.Schema.Name == name && c.HasValue {
			return c.Value, true
		}
	}
	return "", false
}

// EditTree is an edit-config payload under construction.
type EditTree struct {
	Context *Context
	Roots   []*EditNode
}

// NewEditTree returns an empty edit tree bound to ctx.
func NewEditTree(ctx *Context) *EditTree {
	return &EditTree{Context: ctx}
}

// Empty reports whether the tree has no nodes.
func (t *EditTree) Empty() bool {
	return len(t.Roots) == 0
}

// NewPath materializes every node along path that does not exist yet and
// returns the final node. List keys come from the path predicates. A non-nil
// value is assigned to the final node, which must then be a leaf or
// leaf-list.
func (t *EditTree) NewPath(path string, value *string) (*EditNode, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	var parent, node *EditNode
	for _, s := range steps {
		node = t.findChild(parent, s)
		if node == nil {
			node, err = t.materialize(parent, s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		parent = node
	}

	if value != nil {
		if !node.Schema.Kind.Terminal() {
			return nil, fmt.Errorf("%s: cannot assign a value to %s", path, node.Schema.Kind)
		}
		node.SetValue(*value)
	}
	return node, nil
}

func (t *EditTree) materialize(parent *EditNode, s Step) (*EditNode, error) {
	var (
		sn  *SchemaNode
		err error
	)
	if parent == nil {
		sn, err = t.Context.Top(s.Module, s.Name)
		if err != nil {
			return nil, err
		}
	} else {
		sn = parent.Schema.Child(s.Module, s.Name)
		if sn == nil {
			return nil, fmt.Errorf("%s has no child %q", parent.Schema.Path(), s.Name)
		}
	}

	node := &EditNode{Schema: sn, Parent: parent}
	switch sn.Kind {
	case KindList:
		values := make(map[string]string, len(s.Predicates))
		for _, p := range s.Predicates {
			values[p.Key] = p.Value
		}
		for _, k := range sn.Keys {
			v, ok := values[k]
			if !ok {
				continue
			}
			delete(values, k)
			keySchema := sn.Child("", k)
			if keySchema == nil {
				return nil, fmt.Errorf("list %s has no key leaf %q", sn.Path(), k)
			}
			key := &EditNode{Schema: keySchema, Parent: node}
			key.SetValue(v)
			node.Children = append(node.Children, key)
		}
		if len(values) > 0 {
			return nil, fmt.Errorf("predicates %v are not keys of list %s", s.Predicates, sn.Path())
		}
	case KindLeafList:
		for _, p := range s.Predicates {
			if p.Key != "." {
				return nil, fmt.Errorf("leaf-list %s only accepts value predicates", sn.Path())
			}
			node.SetValue(p.Value)
		}
	default:
		if len(s.Predicates) > 0 {
			return nil, fmt.Errorf("%s %s does not take predicates", sn.Kind, sn.Path())
		}
	}

	t.attach(parent, node, len(*t.siblings(parent)))
	return node, nil
}

func (t *EditTree) findChild(parent *EditNode, s Step) *EditNode {
	for _, c := range *t.siblings(parent) {
		if matchStep(c, s) {
			return c
		}
	}
	return nil
}

func (t *EditTree) siblings(parent *EditNode) *[]*EditNode {
	if parent == nil {
		return &t.Roots
	}
	return &parent.Children
}

// Find returns every node matching path.
func (t *EditTree) Find(path string) ([]*EditNode, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	var matched []*EditNode
	for _, r := range t.Roots {
		if matchStep(r, steps[0]) {
			matched = append(matched, r)
		}
	}
	for _, s := range steps[1:] {
		var next []*EditNode
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

// Unlink detaches n from its siblings, keeping its parent pointer so that it
// can be reinserted in the same place.
func (t *EditTree) Unlink(n *EditNode) {
	list := t.siblings(n.Parent)
	for i, c := range *list {
		if c == n {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// Move unlinks n and reinserts it among its siblings at pos. For before and
// after, anchor must be a sibling; when it is not, n goes last.
func (t *EditTree) Move(n *EditNode, pos InsertPosition, anchor *EditNode) error {
	if !pos.Valid() {
		return fmt.Errorf("invalid insert position %q", pos)
	}
	t.Unlink(n)
	list := t.siblings(n.Parent)

	switch pos {
	case InsertFirst:
		t.attach(n.Parent, n, 0)
		return nil
	case InsertLast:
		t.attach(n.Parent, n, len(*list))
		return nil
	}

	idx := -1
	if anchor != nil && anchor != n && anchor.Parent == n.Parent {
		for i, c := range *list {
			if c == anchor {
				idx = i
				break
			}
		}
	}
	switch {
	case idx < 0:
		t.attach(n.Parent, n, len(*list))
	case pos == InsertBefore:
		t.attach(n.Parent, n, idx)
	default:
		t.attach(n.Parent, n, idx+1)
	}
	return nil
}

// FindSibling returns the sibling of n with the same schema that matches the
// given predicates, as carried by the yang:key and yang:value attributes.
func (t *EditTree) FindSibling(n *EditNode, preds []Predicate) *EditNode {
	s := Step{Name: n.Schema.Name, Predicates: preds}
	if n.Schema.Module != nil {
		s.Module = n.Schema.Module.Name
	}
	for _, c := range *t.siblings(n.Parent) {
		if c != n && c.Schema == n.Schema && matchStep(c, s) {
			return c
		}
	}
	return nil
}

func (t *EditTree) attach(parent, n *EditNode, at int) {
	list := t.siblings(parent)
	n.Parent = parent
	if at >= len(*list) {
		*list = append(*list, n)
		return
	}
	*list = append(*list, nil)
	copy((*list)[at+1:], (*list)[at:])
	(*list)[at] = n
}
