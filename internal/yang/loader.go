package yang

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goyang "github.com/openconfig/goyang/pkg/yang"

	"github.com/bhandras/netconsole/pkg/logger"
)

// Loader compiles the YANG sources found in a list of directories into a
// Context. YIN sources are kept on disk but not compiled.
type Loader struct {
	dirs []string
}

// NewLoader returns a Loader searching dirs in order.
func NewLoader(dirs ...string) *Loader {
	return &Loader{dirs: dirs}
}

// Dirs returns the search directories.
func (l *Loader) Dirs() []string {
	return append([]string(nil), l.dirs...)
}

// Has reports whether a source for the module is available. With a revision
// set, "name@revision.yang" is preferred but a bare "name.yang" is accepted.
func (l *Loader) Has(name, revision string) bool {
	for _, d := range l.dirs {
		if revision != "" && fileExists(filepath.Join(d, name+"@"+revision+".yang")) {
			return true
		}
		if revision == "" {
			if matches, _ := filepath.Glob(filepath.Join(d, name+"@*.yang")); len(matches) > 0 {
				return true
			}
		}
		if fileExists(filepath.Join(d, name+".yang")) {
			return true
		}
	}
	return false
}

// Load compiles every *.yang file in the search directories plus the inline
// sources (keyed by a display name). Sources that fail to parse, and
// duplicates of a module already read, are skipped with a warning. A module
// whose imports cannot be resolved, or that does not compile, is dropped
// together with the modules depending on it; Load fails only when no module
// is left.
func (l *Loader) Load(sources map[string]string) (*Context, error) {
	var raw []rawSource
	var files []string
	for _, d := range l.dirs {
		matches, err := filepath.Glob(filepath.Join(d, "*.yang"))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", d, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			logger.Warnf("yang: read %s: %v", f, err)
			continue
		}
		raw = append(raw, rawSource{name: f, text: string(data)})
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw = append(raw, rawSource{name: name, text: sources[name]})
	}

	byModule := make(map[string]*yangSource)
	var order []string
	for _, r := range raw {
		src, err := scan(r)
		if err != nil {
			logger.Warnf("yang: skipping %s: %v", r.name, err)
			continue
		}
		if prev, ok := byModule[src.module]; ok {
			if prev.revision >= src.revision {
				logger.Warnf("yang: skipping %s: module %s already loaded from %s", src.name, src.module, prev.name)
				continue
			}
			logger.Warnf("yang: %s replaces %s for module %s", src.name, prev.name, src.module)
		} else {
			order = append(order, src.module)
		}
		byModule[src.module] = src
	}
	if len(order) == 0 {
		return NewContext(), nil
	}

	all := make([]*yangSource, 0, len(order))
	for _, name := range order {
		all = append(all, byModule[name])
	}
	ms, errs := compile(all)
	if len(errs) == 0 {
		return convertModules(ms), nil
	}

	// Keep every module that compiles with its own dependencies.
	keep := make(map[string]bool)
	for _, name := range order {
		src := byModule[name]
		if src.sub {
			continue
		}
		closure, missing := dependencies(byModule, name)
		if missing != "" {
			logger.Warnf("yang: dropping module %s: no source for %s", name, missing)
			continue
		}
		if _, errs := compile(closure); len(errs) > 0 {
			logger.Warnf("yang: dropping module %s: %v", name, errors.Join(errs...))
			continue
		}
		for _, dep := range closure {
			keep[dep.module] = true
		}
	}

	var usable []*yangSource
	for _, name := range order {
		if keep[name] {
			usable = append(usable, byModule[name])
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("compile schemas: %w", errors.Join(errs...))
	}
	ms, errs = compile(usable)
	if len(errs) > 0 {
		return nil, fmt.Errorf("compile schemas: %w", errors.Join(errs...))
	}
	return convertModules(ms), nil
}

type rawSource struct {
	name string
	text string
}

// yangSource is one parsed module or submodule with the names of the modules
// and submodules it imports or includes.
type yangSource struct {
	rawSource
	module   string
	revision string
	sub      bool
	deps     []string
}

func scan(r rawSource) (*yangSource, error) {
	scratch := goyang.NewModules()
	if err := scratch.Parse(r.text, r.name); err != nil {
		return nil, err
	}

	var m *goyang.Module
	for _, gm := range scratch.Modules {
		m = gm
	}
	sub := false
	if m == nil {
		for _, gm := range scratch.SubModules {
			m, sub = gm, true
		}
	}
	if m == nil {
		return nil, errors.New("no module in source")
	}

	src := &yangSource{rawSource: r, module: m.Name, revision: m.Current(), sub: sub}
	for _, i := range m.Import {
		src.deps = append(src.deps, i.Name)
	}
	for _, i := range m.Include {
		src.deps = append(src.deps, i.Name)
	}
	return src, nil
}

// dependencies returns name and everything it transitively imports or
// includes. missing names the first dependency without a source.
func dependencies(byModule map[string]*yangSource, name string) (closure []*yangSource, missing string) {
	seen := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		src, ok := byModule[cur]
		if !ok {
			return nil, cur
		}
		closure = append(closure, src)
		queue = append(queue, src.deps...)
	}
	return closure, ""
}

func compile(srcs []*yangSource) (*goyang.Modules, []error) {
	ms := goyang.NewModules()
	for _, src := range srcs {
		if err := ms.Parse(src.text, src.name); err != nil {
			return nil, []error{fmt.Errorf("%s: %w", src.name, err)}
		}
	}
	if errs := ms.Process(); len(errs) > 0 {
		return nil, errs
	}
	return ms, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

type converter struct {
	byNamespace map[string]*Module
}

func convertModules(ms *goyang.Modules) *Context {
	keys := make([]string, 0, len(ms.Modules))
	for k := range ms.Modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		sources []*goyang.Module
		seen    = make(map[*goyang.Module]bool)
	)
	for _, k := range keys {
		m := ms.Modules[k]
		if seen[m] {
			continue
		}
		seen[m] = true
		sources = append(sources, m)
	}

	c := &converter{byNamespace: make(map[string]*Module)}
	ctx := NewContext()
	shells := make([]*Module, len(sources))
	for i, gm := range sources {
		m := &Module{
			Name:      gm.Name,
			Revision:  gm.Current(),
			Namespace: valueName(gm.Namespace),
			Prefix:    valueName(gm.Prefix),
		}
		if prev, ok := c.byNamespace[m.Namespace]; !ok || prev.Revision < m.Revision {
			c.byNamespace[m.Namespace] = m
		}
		shells[i] = m
		ctx.Add(m)
	}

	for i, gm := range sources {
		e := goyang.ToEntry(gm)
		if e == nil {
			continue
		}
		for _, child := range dataChildren(e) {
			shells[i].AddTop(c.node(child, shells[i]))
		}
	}
	return ctx
}

func (c *converter) node(e *goyang.Entry, home *Module) *SchemaNode {
	n := &SchemaNode{
		Name:        e.Name,
		Description: strings.TrimSpace(e.Description),
		Config:      !e.ReadOnly(),
		Module:      home,
	}
	if ns := e.Namespace(); ns != nil {
		if m, ok := c.byNamespace[ns.Name]; ok {
			n.Module = m
		}
	}

	switch {
	case e.IsList():
		n.Kind = KindList
		n.Keys = strings.Fields(e.Key)
		n.UserOrdered = orderedByUser(e.Node)
	case e.IsLeafList():
		n.Kind = KindLeafList
		n.UserOrdered = orderedByUser(e.Node)
		n.Type = convertType(e.Type)
	case e.IsLeaf():
		n.Kind = KindLeaf
		n.Type = convertType(e.Type)
		if l, ok := e.Node.(*goyang.Leaf); ok && l.Default != nil {
			n.Default, n.HasDefault = l.Default.Name, true
			if n.BaseType() == BaseIdentityRef {
				n.Default = qualifyIdentity(l, n.Default)
			}
		}
	case e.IsContainer():
		n.Kind = KindContainer
		if ct, ok := e.Node.(*goyang.Container); ok && ct.Presence != nil {
			n.Presence = true
		}
	default:
		n.Kind = KindOther
	}

	for _, child := range dataChildren(e) {
		n.AddChild(c.node(child, n.Module))
	}
	return n
}

// dataChildren lists the children that can appear in instance data, with
// choice and case levels flattened away.
func dataChildren(e *goyang.Entry) []*goyang.Entry {
	names := make([]string, 0, len(e.Dir))
	for name := range e.Dir {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*goyang.Entry
	for _, name := range names {
		child := e.Dir[name]
		switch {
		case child.RPC != nil, child.Kind == goyang.NotificationEntry:
			continue
		case child.IsChoice(), child.IsCase():
			out = append(out, dataChildren(child)...)
		default:
			out = append(out, child)
		}
	}
	return out
}

func orderedByUser(n goyang.Node) bool {
	switch x := n.(type) {
	case *goyang.List:
		return x.OrderedBy != nil && x.OrderedBy.Name == "user"
	case *goyang.LeafList:
		return x.OrderedBy != nil && x.OrderedBy.Name == "user"
	}
	return false
}

func convertType(y *goyang.YangType) *TypeInfo {
	if y == nil {
		return nil
	}
	base := goyang.TypeKindToName[y.Kind]
	t := &TypeInfo{Name: y.Name, Base: base}
	if y.Default != "" {
		t.Default, t.HasDefault = y.Default, true
		if base == BaseIdentityRef && y.Base != nil {
			t.Default = qualifyIdentity(y.Base, t.Default)
		}
	}
	if y.Name != base && base != "" {
		t.Parent = &TypeInfo{Name: base, Base: base}
	}
	return t
}

// qualifyIdentity rewrites an identity written in the YANG source as
// "prefix:name" or "name" into the "module:name" form DecodeXML produces.
// Prefixes resolve against the module holding the statement n.
func qualifyIdentity(n goyang.Node, value string) string {
	prefix, ident, ok := strings.Cut(value, ":")
	var m *goyang.Module
	if ok {
		m = goyang.FindModuleByPrefix(n, prefix)
	} else {
		ident = value
		m = goyang.RootNode(n)
	}
	if m == nil {
		return value
	}
	name := m.Name
	if m.BelongsTo != nil {
		name = m.BelongsTo.Name
	}
	return name + ":" + ident
}

func valueName(v *goyang.Value) string {
	if v == nil {
		return ""
	}
	return v.Name
}
