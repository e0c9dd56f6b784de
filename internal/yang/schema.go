// Package yang holds the runtime data model shared by the console: compiled
// schema nodes, instance (data) trees returned by <get>, and edit trees sent
// with <edit-config>.
package yang

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the node type tag. The numeric values are part of the rendered JSON
// contract with the frontend.
type Kind int

const (
	KindOther     Kind = 0
	KindContainer Kind = 1
	KindChoice    Kind = 2
	KindLeaf      Kind = 4
	KindLeafList  Kind = 8
	KindList      Kind = 16
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindChoice:
		return "choice"
	case KindLeaf:
		return "leaf"
	case KindLeafList:
		return "leaf-list"
	case KindList:
		return "list"
	default:
		return "other"
	}
}

// Repeated reports whether instances of the kind may appear several times
// under one parent.
func (k Kind) Repeated() bool {
	return k == KindList || k == KindLeafList
}

// Terminal reports whether the kind carries a value instead of children.
func (k Kind) Terminal() bool {
	return k == KindLeaf || k == KindLeafList
}

// Format is a schema source format.
type Format int

const (
	FormatUnknown Format = iota
	FormatYANG
	FormatYIN
)

func (f Format) String() string {
	switch f {
	case FormatYANG:
		return "yang"
	case FormatYIN:
		return "yin"
	default:
		return "unknown"
	}
}

// FormatFromFilename derives the schema format from a file extension.
func FormatFromFilename(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yang":
		return FormatYANG, true
	case ".yin":
		return FormatYIN, true
	default:
		return FormatUnknown, false
	}
}

// Base type names used by TypeInfo.Base.
const (
	BaseIdentityRef = "identityref"
	BaseEmpty       = "empty"
)

// TypeInfo describes a leaf type. Parent points at the typedef this type was
// derived from and is nil for built-in types.
type TypeInfo struct {
	Name       string
	Base       string
	Default    string
	HasDefault bool
	Parent     *TypeInfo
}

// EffectiveDefault returns the default of the nearest type in the derivation
// chain that declares one.
func (t *TypeInfo) EffectiveDefault() (string, bool) {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur.HasDefault {
			return cur.Default, true
		}
	}
	return "", false
}

// Module is a compiled YANG module.
type Module struct {
	Name      string
	Revision  string
	Namespace string
	Prefix    string
	Top       []*SchemaNode
}

// Key returns the revision-qualified module name ("name@rev"), or the bare
// name when the module has no revision.
func (m *Module) Key() string {
	if m.Revision == "" {
		return m.Name
	}
	return m.Name + "@" + m.Revision
}

// AddTop appends a top-level data node owned by m.
func (m *Module) AddTop(n *SchemaNode) *SchemaNode {
	if n.Module == nil {
		n.Module = m
	}
	m.Top = append(m.Top, n)
	return n
}

// SchemaNode is one data-definition node of a compiled schema. Choice and case
// nodes are flattened away, so Children are the nodes that can appear in
// instance data.
type SchemaNode struct {
	Kind        Kind
	Module      *Module
	Name        string
	Description string
	Config      bool
	Presence    bool
	UserOrdered bool
	Keys        []string
	Type        *TypeInfo
	Default     string
	HasDefault  bool

	Parent   *SchemaNode
	Children []*SchemaNode
}

// AddChild appends c under n. A child without a module inherits n's module.
func (n *SchemaNode) AddChild(c *SchemaNode) *SchemaNode {
	c.Parent = n
	if c.Module == nil {
		c.Module = n.Module
	}
	n.Children = append(n.Children, c)
	return c
}

// Child finds a direct child by name. An empty module matches any module,
// preferring the parent's own module.
func (n *SchemaNode) Child(module, name string) *SchemaNode {
	return findSchema(n.Children, n.Module, module, name)
}

func findSchema(nodes []*SchemaNode, home *Module, module, name string) *SchemaNode {
	var fallback *SchemaNode
	for _, c := range nodes {
		if c.Name != name {
			continue
		}
		if module != "" {
			if c.Module != nil && c.Module.Name == module {
				return c
			}
			continue
		}
		if home != nil && c.Module == home {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}

// Path returns the schema path, prefixing a step with its module name
// whenever the module changes.
func (n *SchemaNode) Path() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent {
		step := cur.Name
		if cur.Parent == nil || cur.Parent.Module != cur.Module {
			step = cur.Module.Name + ":" + step
		}
		parts = append(parts, step)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// EffectiveDefault returns the node's own default or, failing that, the
// default inherited through its type chain.
func (n *SchemaNode) EffectiveDefault() (string, bool) {
	if n.HasDefault {
		return n.Default, true
	}
	if n.Type != nil {
		return n.Type.EffectiveDefault()
	}
	return "", false
}

// IsKey reports whether n is a key leaf of its parent list.
func (n *SchemaNode) IsKey() bool {
	if n.Parent == nil || n.Parent.Kind != KindList {
		return false
	}
	for _, k := range n.Parent.Keys {
		if k == n.Name {
			return true
		}
	}
	return false
}

// BaseType returns the built-in base type name, or "" for non-terminal nodes.
func (n *SchemaNode) BaseType() string {
	if n.Type == nil {
		return ""
	}
	return n.Type.Base
}

// Context is a set of compiled modules.
type Context struct {
	modules []*Module
}

// NewContext builds a Context from modules.
func NewContext(modules ...*Module) *Context {
	c := &Context{}
	for _, m := range modules {
		c.Add(m)
	}
	return c
}

// Add registers a module.
func (c *Context) Add(m *Module) {
	c.modules = append(c.modules, m)
}

// Modules returns the modules sorted by key.
func (c *Context) Modules() []*Module {
	out := append([]*Module(nil), c.modules...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Module looks up a module. An empty revision selects the newest one.
func (c *Context) Module(name, revision string) *Module {
	var best *Module
	for _, m := range c.modules {
		if m.Name != name {
			continue
		}
		if revision != "" {
			if m.Revision == revision {
				return m
			}
			continue
		}
		if best == nil || m.Revision > best.Revision {
			best = m
		}
	}
	return best
}

// ModuleByKey resolves "name" or "name@revision".
func (c *Context) ModuleByKey(key string) *Module {
	name, rev, _ := strings.Cut(key, "@")
	return c.Module(name, rev)
}

// ModuleByNamespace looks up a module by its XML namespace.
func (c *Context) ModuleByNamespace(ns string) *Module {
	for _, m := range c.modules {
		if m.Namespace == ns {
			return m
		}
	}
	return nil
}

// Top finds a top-level node. An empty module searches every module and
// fails when the name is ambiguous.
func (c *Context) Top(module, name string) (*SchemaNode, error) {
	if module != "" {
		m := c.Module(module, "")
		if m == nil {
			return nil, fmt.Errorf("unknown module %q", module)
		}
		if n := findSchema(m.Top, m, "", name); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("module %q has no top-level node %q", module, name)
	}

	var found *SchemaNode
	for _, m := range c.modules {
		for _, n := range m.Top {
			if n.Name != name {
				continue
			}
			if found != nil && found != n {
				return nil, fmt.Errorf("top-level node %q is ambiguous", name)
			}
			found = n
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown top-level node %q", name)
	}
	return found, nil
}

// FindSchema resolves a data or schema path to its schema node. Predicates
// are ignored.
func (c *Context) FindSchema(path string) (*SchemaNode, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	node, err := c.Top(steps[0].Module, steps[0].Name)
	if err != nil {
		return nil, err
	}
	for _, s := range steps[1:] {
		next := node.Child(s.Module, s.Name)
		if next == nil {
			return nil, fmt.Errorf("%s has no child %q", node.Path(), s.Name)
		}
		node = next
	}
	return node, nil
}
