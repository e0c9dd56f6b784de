package yang

import (
	"fmt"
	"strings"
)

// Predicate is one "[key='value']" filter of a path step. Key is "." for a
// leaf-list value predicate.
type Predicate struct {
	Key   string
	Value string
}

// Step is one "/module:name[...]" segment of a path.
type Step struct {
	Module     string
	Name       string
	Predicates []Predicate
}

func (s Step) String() string {
	var b strings.Builder
	if s.Module != "" {
		b.WriteString(s.Module)
		b.WriteByte(':')
	}
	b.WriteString(s.Name)
	for _, p := range s.Predicates {
		writePredicate(&b, p.Key, p.Value)
	}
	return b.String()
}

// ParsePath splits an absolute data path into steps.
func ParsePath(path string) ([]Step, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q is not absolute", path)
	}

	var (
		steps []Step
		i     = 0
	)
	for i < len(path) {
		if path[i] != '/' {
			return nil, fmt.Errorf("path %q: expected '/' at offset %d", path, i)
		}
		i++
		start := i
		for i < len(path) && path[i] != '/' && path[i] != '[' {
			i++
		}
		ident := strings.TrimSpace(path[start:i])
		if ident == "" {
			return nil, fmt.Errorf("path %q: empty step at offset %d", path, start)
		}
		var step Step
		if mod, name, ok := strings.Cut(ident, ":"); ok {
			step.Module, step.Name = mod, name
		} else {
			step.Name = ident
		}

		for i < len(path) && path[i] == '[' {
			pred, next, err := parsePredicate(path, i)
			if err != nil {
				return nil, err
			}
			step.Predicates = append(step.Predicates, pred)
			i = next
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("path %q has no steps", path)
	}
	return steps, nil
}

// parsePredicate parses "[key='value']" starting at path[i] == '['.
func parsePredicate(path string, i int) (Predicate, int, error) {
	i++
	eq := strings.IndexByte(path[i:], '=')
	if eq < 0 {
		return Predicate{}, 0, fmt.Errorf("path %q: predicate without '='", path)
	}
	key := strings.TrimSpace(path[i : i+eq])
	if _, local, ok := strings.Cut(key, ":"); ok {
		key = local
	}
	i += eq + 1
	for i < len(path) && path[i] == ' ' {
		i++
	}
	if i >= len(path) || (path[i] != '\'' && path[i] != '"') {
		return Predicate{}, 0, fmt.Errorf("path %q: predicate value must be quoted", path)
	}
	quote := path[i]
	i++
	end := strings.IndexByte(path[i:], quote)
	if end < 0 {
		return Predicate{}, 0, fmt.Errorf("path %q: unterminated predicate value", path)
	}
	value := path[i : i+end]
	i += end + 1
	for i < len(path) && path[i] == ' ' {
		i++
	}
	if i >= len(path) || path[i] != ']' {
		return Predicate{}, 0, fmt.Errorf("path %q: predicate not closed", path)
	}
	if key == "" {
		return Predicate{}, 0, fmt.Errorf("path %q: predicate without key", path)
	}
	return Predicate{Key: key, Value: value}, i + 1, nil
}

// ParsePredicates parses a bare predicate list such as "[name='a'][unit='0']",
// the format of the yang:key attribute.
func ParsePredicates(raw string) ([]Predicate, error) {
	var preds []Predicate
	raw = strings.TrimSpace(raw)
	i := 0
	for i < len(raw) {
		if raw[i] != '[' {
			return nil, fmt.Errorf("predicate list %q: expected '['", raw)
		}
		p, next, err := parsePredicate(raw, i)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
		i = next
	}
	return preds, nil
}

func writePredicate(b *strings.Builder, key, value string) {
	quote := byte('\'')
	if strings.IndexByte(value, '\'') >= 0 {
		quote = '"'
	}
	b.WriteByte('[')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteByte(quote)
	b.WriteString(value)
	b.WriteByte(quote)
	b.WriteByte(']')
}

// pathNode is the view of a tree node needed to match path steps.
type pathNode interface {
	schema() *SchemaNode
	selfValue() (string, bool)
	childValue(name string) (string, bool)
}

func matchStep(n pathNode, s Step) bool {
	sn := n.schema()
	if sn == nil || sn.Name != s.Name {
		return false
	}
	if s.Module != "" && (sn.Module == nil || sn.Module.Name != s.Module) {
		return false
	}
	for _, p := range s.Predicates {
		var (
			got string
			ok  bool
		)
		if p.Key == "." {
			got, ok = n.selfValue()
		} else {
			got, ok = n.childValue(p.Key)
		}
		if !ok || got != p.Value {
			return false
		}
	}
	return true
}

// formatStep renders the data-path step of a node.
func formatStep(b *strings.Builder, n pathNode, parent *SchemaNode) {
	sn := n.schema()
	b.WriteByte('/')
	if parent == nil || parent.Module != sn.Module {
		b.WriteString(sn.Module.Name)
		b.WriteByte(':')
	}
	b.WriteString(sn.Name)
	switch sn.Kind {
	case KindList:
		for _, k := range sn.Keys {
			if v, ok := n.childValue(k); ok {
				writePredicate(b, k, v)
			}
		}
	case KindLeafList:
		if v, ok := n.selfValue(); ok {
			writePredicate(b, ".", v)
		}
	}
}
