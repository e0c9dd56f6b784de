// Package edit turns the browser's per-path modification map into a single
// edit-config tree.
package edit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bhandras/netconsole/internal/yang"
)

// Type is the kind of a modification.
type Type string

const (
	TypeChange  Type = "change"
	TypeCreate  Type = "create"
	TypeReplace Type = "replace"
	TypeDelete  Type = "delete"
	TypeReorder Type = "reorder"
)

// Transaction is one move of a reorder modification. Key carries the anchor
// predicates of a list entry, Value the anchor value of a leaf-list item.
type Transaction struct {
	Node   string              `json:"node"`
	Insert yang.InsertPosition `json:"insert"`
	Key    *string             `json:"key,omitempty"`
	Value  *string             `json:"value,omitempty"`
}

// PayloadInfo is the subset of rendered node info a create/replace payload
// carries.
type PayloadInfo struct {
	Type   yang.Kind `json:"type"`
	Module string    `json:"module"`
	Name   string    `json:"name"`
	Key    bool      `json:"key,omitempty"`
}

// Payload describes a node to create or replace, with its subtree.
type Payload struct {
	Path     string          `json:"path,omitempty"`
	Info     PayloadInfo     `json:"info"`
	Value    json.RawMessage `json:"value,omitempty"`
	Children []Payload       `json:"children,omitempty"`
}

// Descriptor is one modification of the commit request.
type Descriptor struct {
	Type         Type            `json:"type"`
	Value        json.RawMessage `json:"value,omitempty"`
	Data         *Payload        `json:"data,omitempty"`
	Transactions []Transaction   `json:"transactions,omitempty"`
}

// Entry pairs a modification with the path it is keyed by.
type Entry struct {
	Path       string
	Descriptor Descriptor
}

// Modifications is the commit request's modification map in the order the
// client sent it.
type Modifications []Entry

// UnmarshalJSON decodes a JSON object keeping its member order.
func (m *Modifications) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*m = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("modifications must be a JSON object")
	}

	var out Modifications
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		path, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var d Descriptor
		if err := dec.Decode(&d); err != nil {
			return fmt.Errorf("modification %s: %w", path, err)
		}
		out = append(out, Entry{Path: path, Descriptor: d})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalJSON encodes the modifications as a JSON object in order.
func (m Modifications) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Path)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Descriptor)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// scalar renders a JSON scalar as the string form used in data trees.
func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("missing value")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("value %s is not a scalar", strings.TrimSpace(string(raw)))
	default:
		return string(raw), nil
	}
}

// firstScalar returns the first element of a leaf-list value array. A bare
// scalar is accepted as a one-element array.
func firstScalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return scalar(raw)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", errors.New("empty leaf-list value")
	}
	return scalar(items[0])
}
