package yang

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

type decodeFrame struct {
	node     *DataNode
	text     strings.Builder
	prefixes map[string]string
}

// DecodeXML parses instance data encoded as XML. The input is either a
// NETCONF <data> element or a sequence of top-level data elements. Elements
// that no loaded schema describes are skipped. Identityref values are
// rewritten into the "module:identity" form.
func DecodeXML(ctx *Context, r io.Reader) (*DataTree, error) {
	dec := xml.NewDecoder(r)
	tree := &DataTree{}
	var stack []*decodeFrame

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			var top *decodeFrame
			if len(stack) > 0 {
				top = stack[len(stack)-1]
			}
			frame := &decodeFrame{prefixes: scopePrefixes(top, el.Attr)}

			if top == nil && el.Name.Local == "data" && el.Name.Space == NetconfBaseNS {
				stack = append(stack, frame)
				continue
			}

			var parent *DataNode
			if top != nil {
				parent = top.node
			}
			sn := resolveElement(ctx, parent, el.Name)
			if sn == nil {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("decode data: %w", err)
				}
				continue
			}

			frame.node = &DataNode{Schema: sn}
			if parent != nil {
				parent.AddChild(frame.node)
			} else {
				tree.AddRoot(frame.node)
			}
			stack = append(stack, frame)

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if top.node != nil && top.node.Schema.Kind.Terminal() {
				top.text.Write(el)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.node == nil || !top.node.Schema.Kind.Terminal() {
				continue
			}
			value := strings.TrimSpace(top.text.String())
			if top.node.Schema.BaseType() == BaseIdentityRef {
				value = canonicalIdentity(ctx, top.node.Schema, top.prefixes, value)
			}
			top.node.Value = value
		}
	}
	return tree, nil
}

func scopePrefixes(parent *decodeFrame, attrs []xml.Attr) map[string]string {
	out := make(map[string]string)
	if parent != nil {
		for k, v := range parent.prefixes {
			out[k] = v
		}
	}
	for _, a := range attrs {
		switch {
		case a.Name.Space == "xmlns":
			out[a.Name.Local] = a.Value
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			out[""] = a.Value
		}
	}
	return out
}

func resolveElement(ctx *Context, parent *DataNode, name xml.Name) *SchemaNode {
	module := ""
	if name.Space != "" {
		m := ctx.ModuleByNamespace(name.Space)
		if m == nil {
			return nil
		}
		module = m.Name
	}
	if parent == nil {
		sn, err := ctx.Top(module, name.Local)
		if err != nil {
			return nil
		}
		return sn
	}
	return parent.Schema.Child(module, name.Local)
}

// canonicalIdentity rewrites an identityref value to "module:identity". An
// unprefixed value resolves through the default namespace in scope and, when
// that is unknown, belongs to the leaf's own module.
func canonicalIdentity(ctx *Context, sn *SchemaNode, prefixes map[string]string, value string) string {
	prefix, ident, ok := strings.Cut(value, ":")
	if !ok {
		prefix, ident = "", value
	}
	if ns, found := prefixes[prefix]; found {
		if m := ctx.ModuleByNamespace(ns); m != nil {
			return m.Name + ":" + ident
		}
	}
	if !ok && sn.Module != nil {
		return sn.Module.Name + ":" + ident
	}
	return value
}

// XML renders the edit tree as the <config> content of an edit-config
// request.
func (t *EditTree) XML() (string, error) {
	var b strings.Builder
	for _, r := range t.Roots {
		if err := t.writeNode(&b, r, ""); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// WriteXML writes the rendering of XML to w.
func (t *EditTree) WriteXML(w io.Writer) error {
	s, err := t.XML()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

func (t *EditTree) writeNode(b *strings.Builder, n *EditNode, parentNS string) error {
	if n.Schema.Module == nil {
		return fmt.Errorf("node %q has no module", n.Schema.Name)
	}
	ns := n.Schema.Module.Namespace
	name := n.Schema.Name

	b.WriteByte('<')
	b.WriteString(name)
	if ns != parentNS {
		writeAttr(b, "xmlns", ns)
	}

	decls := make(map[string]string)
	var attrs []string
	for _, a := range n.Attrs {
		prefix, attrNS, err := t.attrNamespace(a.Module)
		if err != nil {
			return err
		}
		decls[prefix] = attrNS
		attrs = append(attrs, prefix+":"+a.Name+"\x00"+a.Value)
	}

	value := n.Value
	if n.HasValue && n.Schema.BaseType() == BaseIdentityRef {
		if mod, ident, ok := strings.Cut(value, ":"); ok {
			if m := t.Context.Module(mod, ""); m != nil {
				prefix := m.Prefix
				if prefix == "" {
					prefix = m.Name
				}
				decls[prefix] = m.Namespace
				value = prefix + ":" + ident
			}
		}
	}

	prefixes := make([]string, 0, len(decls))
	for p := range decls {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		writeAttr(b, "xmlns:"+p, decls[p])
	}
	for _, a := range attrs {
		key, val, _ := strings.Cut(a, "\x00")
		writeAttr(b, key, val)
	}

	if len(n.Children) == 0 && (!n.HasValue || value == "") {
		b.WriteString("/>")
		return nil
	}
	b.WriteByte('>')
	if n.HasValue {
		_ = xml.EscapeText(b, []byte(value))
	}
	for _, c := range n.Children {
		if err := t.writeNode(b, c, ns); err != nil {
			return err
		}
	}
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
	return nil
}

func (t *EditTree) attrNamespace(module string) (string, string, error) {
	switch module {
	case AttrNetconf:
		return "nc", NetconfBaseNS, nil
	case AttrYang:
		return "yang", YangMetaNS, nil
	}
	if m := t.Context.Module(module, ""); m != nil {
		prefix := m.Prefix
		if prefix == "" {
			prefix = m.Name
		}
		return prefix, m.Namespace, nil
	}
	return "", "", fmt.Errorf("unknown attribute module %q", module)
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteString(`="`)
	_ = xml.EscapeText(b, []byte(value))
	b.WriteByte('"')
}
