// Package tree renders instance trees into the JSON shape the browser tree
// view consumes.
package tree

import (
	"errors"
	"strings"

	"github.com/bhandras/netconsole/internal/yang"
)

var (
	// ErrInvalidPath is returned by Subtree when the path does not select
	// exactly one node.
	ErrInvalidPath = errors.New("Invalid data path.")

	// ErrDefaultNode is returned by Subtree when the selected node only
	// carries its schema default.
	ErrDefaultNode = errors.New("Path refers to a default node.")
)

// NodeInfo is the schema metadata attached to every rendered node.
type NodeInfo struct {
	Type         yang.Kind `json:"type"`
	Module       string    `json:"module"`
	Name         string    `json:"name"`
	Description  string    `json:"dsc,omitempty"`
	Config       bool      `json:"config"`
	Path         string    `json:"path"`
	Presence     bool      `json:"presence,omitempty"`
	DataType     string    `json:"datatype,omitempty"`
	DataTypeBase string    `json:"datatypebase,omitempty"`
	Default      string    `json:"default,omitempty"`
	Key          bool      `json:"key,omitempty"`
	Ordered      bool      `json:"ordered,omitempty"`
	Keys         []string  `json:"keys,omitempty"`
	RefModule    string    `json:"refmodule,omitempty"`
}

// Rendered is one node of the rendered tree. Value is a string for leaves and
// a one-element []string for leaf-list instances.
type Rendered struct {
	Info         NodeInfo    `json:"info"`
	Path         string      `json:"path"`
	Value        any         `json:"value,omitempty"`
	Children     []*Rendered `json:"children,omitempty"`
	Keys         []string    `json:"keys,omitempty"`
	First        bool        `json:"first,omitempty"`
	Last         bool        `json:"last,omitempty"`
	Order        *int        `json:"order,omitempty"`
	LastLeafList bool        `json:"lastLeafList,omitempty"`
}

// Info projects the schema metadata of sn.
func Info(sn *yang.SchemaNode) NodeInfo {
	info := NodeInfo{
		Type:        sn.Kind,
		Name:        sn.Name,
		Description: sn.Description,
		Config:      sn.Config,
		Path:        sn.Path(),
		Key:         sn.IsKey(),
	}
	if sn.Module != nil {
		info.Module = sn.Module.Name
	}

	switch sn.Kind {
	case yang.KindLeaf, yang.KindLeafList:
		if sn.Type != nil {
			info.DataType = sn.Type.Name
			info.DataTypeBase = sn.Type.Base
		}
		if def, ok := sn.EffectiveDefault(); ok {
			info.Default = def
		}
		if sn.Kind == yang.KindLeafList {
			info.Ordered = sn.UserOrdered
		}
	case yang.KindContainer:
		info.Presence = sn.Presence
	case yang.KindList:
		info.Ordered = sn.UserOrdered
		info.Keys = append([]string(nil), sn.Keys...)
	}
	return info
}

// Projector renders data trees compiled against one schema context.
type Projector struct {
	ctx *yang.Context

	// IncludeDefaults keeps nodes whose value equals their schema default.
	IncludeDefaults bool
}

// New returns a Projector resolving identities through ctx.
func New(ctx *yang.Context) *Projector {
	return &Projector{ctx: ctx}
}

// Node renders n. It returns nil when n only carries its default value.
// Children are rendered only when recursive is set.
func (p *Projector) Node(n *yang.DataNode, recursive bool) *Rendered {
	if !p.IncludeDefaults && n.IsDefault() {
		return nil
	}

	r := &Rendered{
		Info: Info(n.Schema),
		Path: n.Path(),
	}
	switch n.Schema.Kind {
	case yang.KindLeaf:
		r.Value = n.Value
		p.resolveIdentity(r, n)
	case yang.KindLeafList:
		r.Value = []string{n.Value}
		p.resolveIdentity(r, n)
	case yang.KindContainer, yang.KindList:
		if recursive {
			p.expand(r, n, true)
		}
	}
	return r
}

// Subtree renders the node at path together with its immediate children;
// recursive controls the depth below those children.
func (p *Projector) Subtree(data *yang.DataTree, path string, recursive bool) (*Rendered, error) {
	nodes, err := data.Find(path)
	if err != nil || len(nodes) != 1 {
		return nil, ErrInvalidPath
	}
	r := p.Node(nodes[0], false)
	if r == nil {
		return nil, ErrDefaultNode
	}
	p.expand(r, nodes[0], recursive)
	return r, nil
}

// Roots renders every top-level node of data with its immediate children.
func (p *Projector) Roots(data *yang.DataTree, recursive bool) []*Rendered {
	out := make([]*Rendered, 0, len(data.Roots))
	for _, root := range data.Roots {
		r := p.Node(root, false)
		if r == nil {
			continue
		}
		p.expand(r, root, recursive)
		out = append(out, r)
	}
	return Group(out)
}

func (p *Projector) expand(r *Rendered, n *yang.DataNode, recursive bool) {
	children := make([]*Rendered, 0, len(n.Children))
	for _, c := range n.Children {
		if rc := p.Node(c, recursive); rc != nil {
			children = append(children, rc)
		}
	}
	if n.Schema.Kind == yang.KindList {
		r.Keys = keyValues(n.Schema.Keys, children)
	}
	r.Children = Group(children)
}

// keyValues matches the declared key names against the leading children.
func keyValues(keys []string, children []*Rendered) []string {
	var out []string
	for i, k := range keys {
		if i >= len(children) {
			break
		}
		if children[i].Info.Name != k {
			continue
		}
		if v, ok := children[i].Value.(string); ok {
			out = append(out, v)
		}
	}
	return out
}

func (p *Projector) resolveIdentity(r *Rendered, n *yang.DataNode) {
	if n.Schema.BaseType() != yang.BaseIdentityRef || p.ctx == nil {
		return
	}
	mod, _, ok := strings.Cut(n.Value, ":")
	if !ok {
		return
	}
	if m := p.ctx.Module(mod, ""); m != nil {
		r.Info.RefModule = m.Key()
	}
}

func sameGroup(a, b *Rendered) bool {
	return a.Info.Module == b.Info.Module && a.Info.Name == b.Info.Name
}

// Group reorders a completed children sequence so that every list and
// leaf-list run is contiguous behind its first instance, then stamps the
// positional flags: First on a run's anchor, Order on members of user-ordered
// runs, Last on the final child and LastLeafList on the members of a trailing
// leaf-list run.
func Group(items []*Rendered) []*Rendered {
	out := make([]*Rendered, 0, len(items))
	used := make([]bool, len(items))

	for _, it := range items {
		it.First, it.Last, it.Order, it.LastLeafList = false, false, nil, false
	}

	for i, it := range items {
		if used[i] {
			continue
		}
		used[i] = true
		if !it.Info.Type.Repeated() {
			out = append(out, it)
			continue
		}

		run := []*Rendered{it}
		for j := i + 1; j < len(items); j++ {
			if !used[j] && sameGroup(it, items[j]) {
				used[j] = true
				run = append(run, items[j])
			}
		}
		it.First = true
		if it.Info.Ordered {
			for k, member := range run {
				ord := k
				member.Order = &ord
			}
		}
		out = append(out, run...)
	}

	if len(out) == 0 {
		return out
	}
	last := out[len(out)-1]
	last.Last = true
	if last.Info.Type == yang.KindLeafList {
		anchor := len(out) - 1
		for anchor > 0 && !out[anchor].First {
			anchor--
		}
		for k := anchor + 1; k < len(out); k++ {
			out[k].LastLeafList = true
		}
	}
	return out
}
