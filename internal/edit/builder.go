package edit

import (
	"errors"
	"fmt"

	"github.com/bhandras/netconsole/internal/yang"
)

var (
	// ErrInvalidModification marks a request the builder cannot interpret.
	ErrInvalidModification = errors.New("invalid modification")

	// ErrPath marks a path that cannot be materialized against the schema.
	ErrPath = errors.New("invalid edit path")
)

// Build assembles one edit tree from mods. Every non-reorder modification is
// applied first, in order; the collected reorder transactions run afterwards
// so that they can refer to nodes created by the same batch.
func Build(ctx *yang.Context, mods Modifications) (*yang.EditTree, error) {
	tree := yang.NewEditTree(ctx)

	var reorders []Transaction
	for _, e := range mods {
		if e.Descriptor.Type == TypeReorder {
			reorders = append(reorders, e.Descriptor.Transactions...)
			continue
		}
		if err := apply(tree, e); err != nil {
			return nil, err
		}
	}

	for _, tx := range reorders {
		if err := reorder(tree, tx); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func apply(tree *yang.EditTree, e Entry) error {
	d := e.Descriptor
	path := e.Path
	if d.Data != nil && d.Data.Path != "" {
		path = d.Data.Path
	}

	var (
		value   *string
		recurse bool
		op      yang.Operation
	)
	switch d.Type {
	case TypeChange:
		v, err := scalar(d.Value)
		if err != nil {
			return fmt.Errorf("%w %s: %v", ErrInvalidModification, e.Path, err)
		}
		value, op = &v, yang.OpMerge

	case TypeCreate, TypeReplace:
		op = yang.OpCreate
		if d.Type == TypeReplace {
			op = yang.OpReplace
		}
		if d.Data == nil {
			return fmt.Errorf("%w %s: missing data", ErrInvalidModification, e.Path)
		}
		switch d.Data.Info.Type {
		case yang.KindContainer, yang.KindList:
			recurse = true
		case yang.KindLeaf:
			v, err := scalar(d.Data.Value)
			if err != nil {
				return fmt.Errorf("%w %s: %v", ErrInvalidModification, e.Path, err)
			}
			value = &v
		case yang.KindLeafList:
			v, err := firstScalar(d.Data.Value)
			if err != nil {
				return fmt.Errorf("%w %s: %v", ErrInvalidModification, e.Path, err)
			}
			value = &v
		default:
			return fmt.Errorf("%w %s: cannot create node of type %d",
				ErrInvalidModification, e.Path, d.Data.Info.Type)
		}

	case TypeDelete:
		op = yang.OpDelete

	default:
		return fmt.Errorf("%w %s", ErrInvalidModification, e.Path)
	}

	node, err := tree.NewPath(path, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPath, err)
	}
	node.SetOperation(op)

	if !recurse {
		return nil
	}
	for _, c := range d.Data.Children {
		if c.Info.Key {
			continue
		}
		if err := createChild(tree.Context, node, c); err != nil {
			return err
		}
	}
	return nil
}

func createChild(ctx *yang.Context, parent *yang.EditNode, p Payload) error {
	module := ""
	if p.Info.Module != "" {
		m := ctx.ModuleByKey(p.Info.Module)
		if m == nil {
			return fmt.Errorf("%w: unknown module %q", ErrPath, p.Info.Module)
		}
		module = m.Name
	}

	switch p.Info.Type {
	case yang.KindLeaf, yang.KindLeafList:
		read := scalar
		if p.Info.Type == yang.KindLeafList {
			read = firstScalar
		}
		v, err := read(p.Value)
		if err != nil {
			return fmt.Errorf("%w %s: %v", ErrInvalidModification, p.Info.Name, err)
		}
		if _, err := parent.NewChild(module, p.Info.Name, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPath, err)
		}
		return nil
	}

	child, err := parent.NewChild(module, p.Info.Name, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPath, err)
	}
	for _, gc := range p.Children {
		if err := createChild(ctx, child, gc); err != nil {
			return err
		}
	}
	return nil
}

func reorder(tree *yang.EditTree, tx Transaction) error {
	if !tx.Insert.Valid() {
		return fmt.Errorf("%w: insert %q for %s", ErrInvalidModification, tx.Insert, tx.Node)
	}

	var node *yang.EditNode
	if found, err := tree.Find(tx.Node); err == nil && len(found) > 0 {
		node = found[0]
		anchor, err := anchorOf(tree, node, tx)
		if err != nil {
			return err
		}
		if err := tree.Move(node, tx.Insert, anchor); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidModification, err)
		}
	} else {
		node, err = tree.NewPath(tx.Node, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPath, err)
		}
	}

	node.SetAttr(yang.AttrYang, "insert", string(tx.Insert))
	if tx.Insert.NeedsAnchor() {
		switch {
		case tx.Key != nil:
			node.SetAttr(yang.AttrYang, "key", *tx.Key)
		case tx.Value != nil:
			node.SetAttr(yang.AttrYang, "value", *tx.Value)
		}
	}
	return nil
}

func anchorOf(tree *yang.EditTree, node *yang.EditNode, tx Transaction) (*yang.EditNode, error) {
	if !tx.Insert.NeedsAnchor() {
		return nil, nil
	}
	switch {
	case tx.Key != nil:
		preds, err := yang.ParsePredicates(*tx.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModification, err)
		}
		return tree.FindSibling(node, preds), nil
	case tx.Value != nil:
		return tree.FindSibling(node, []yang.Predicate{{Key: ".", Value: *tx.Value}}), nil
	}
	return nil, nil
}
