package edit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bhandras/netconsole/internal/yang"
	"github.com/bhandras/netconsole/internal/yang/yangtest"
)

func decode(t *testing.T, raw string) Modifications {
	t.Helper()
	var mods Modifications
	require.NoError(t, json.Unmarshal([]byte(raw), &mods))
	return mods
}

func find(t *testing.T, tree *yang.EditTree, path string) *yang.EditNode {
	t.Helper()
	nodes, err := tree.Find(path)
	require.NoError(t, err)
	require.Len(t, nodes, 1, path)
	return nodes[0]
}

func attr(t *testing.T, n *yang.EditNode, module, name string) string {
	t.Helper()
	v, ok := n.Attr(module, name)
	require.True(t, ok, "%s:%s on %s", module, name, n.Path())
	return v
}

func TestModificationsKeepOrder(t *testing.T) {
	mods := decode(t, `{
		"/z": {"type": "delete"},
		"/a": {"type": "change", "value": 5},
		"/m": {"type": "reorder", "transactions": [{"node": "/m", "insert": "first"}]}
	}`)
	require.Len(t, mods, 3)
	require.Equal(t, []string{"/z", "/a", "/m"}, []string{mods[0].Path, mods[1].Path, mods[2].Path})
	require.Equal(t, TypeReorder, mods[2].Descriptor.Type)
	require.Equal(t, yang.InsertFirst, mods[2].Descriptor.Transactions[0].Insert)

	raw, err := json.Marshal(mods)
	require.NoError(t, err)
	again := decode(t, string(raw))
	require.Equal(t, []string{"/z", "/a", "/m"}, []string{again[0].Path, again[1].Path, again[2].Path})

	var bad Modifications
	require.Error(t, json.Unmarshal([]byte(`["/a"]`), &bad))
}

func TestChangeWithReorderFirst(t *testing.T) {
	mods := decode(t, `{
		"/net:interfaces/dns": {"type": "reorder", "transactions": [
			{"node": "/net:interfaces/hostname", "insert": "first"}
		]},
		"/net:interfaces/hostname": {"type": "change", "value": 5}
	}`)

	tree, err := Build(yangtest.Context(), mods)
	require.NoError(t, err)

	host := find(t, tree, "/net:interfaces/hostname")
	require.Equal(t, "5", host.Value)
	require.Equal(t, "merge", attr(t, host, yang.AttrNetconf, "operation"))
	require.Equal(t, "first", attr(t, host, yang.AttrYang, "insert"))
	_, hasKey := host.Attr(yang.AttrYang, "key")
	require.False(t, hasKey)
}

func TestReorderOfNodesCreatedInBatch(t *testing.T) {
	mods := decode(t, `{
		"reorder": {"type": "reorder", "transactions": [
			{"node": "/net:interfaces/interface[name='b']", "insert": "before", "key": "[name='a']"}
		]},
		"/net:interfaces/interface[name='a']": {"type": "create", "data": {
			"path": "/net:interfaces/interface[name='a']",
			"info": {"type": 16, "module": "net", "name": "interface"},
			"children": [
				{"info": {"type": 4, "module": "net", "name": "name", "key": true}, "value": "a"},
				{"info": {"type": 4, "module": "net", "name": "mtu"}, "value": "1400"}
			]
		}},
		"/net:interfaces/interface[name='b']": {"type": "create", "data": {
			"path": "/net:interfaces/interface[name='b']",
			"info": {"type": 16, "module": "net", "name": "interface"}
		}}
	}`)

	tree, err := Build(yangtest.Context(), mods)
	require.NoError(t, err)

	a := find(t, tree, "/net:interfaces/interface[name='a']")
	b := find(t, tree, "/net:interfaces/interface[name='b']")
	require.Equal(t, "create", attr(t, a, yang.AttrNetconf, "operation"))
	require.Len(t, a.Children, 2, "key child is not duplicated")
	require.Equal(t, "mtu", a.Children[1].Schema.Name)

	require.Equal(t, "before", attr(t, b, yang.AttrYang, "insert"))
	require.Equal(t, "[name='a']", attr(t, b, yang.AttrYang, "key"))
	require.Equal(t, []*yang.EditNode{b, a}, a.Parent.Children)
}

func TestReorderUntouchedNode(t *testing.T) {
	mods := decode(t, `{
		"/net:interfaces/dns": {"type": "reorder", "transactions": [
			{"node": "/net:interfaces/dns[.='8.8.8.8']", "insert": "after", "value": "1.1.1.1"}
		]}
	}`)

	tree, err := Build(yangtest.Context(), mods)
	require.NoError(t, err)

	dns := find(t, tree, "/net:interfaces/dns[.='8.8.8.8']")
	require.Equal(t, "8.8.8.8", dns.Value)
	require.Equal(t, "after", attr(t, dns, yang.AttrYang, "insert"))
	require.Equal(t, "1.1.1.1", attr(t, dns, yang.AttrYang, "value"))
	_, hasOp := dns.Attr(yang.AttrNetconf, "operation")
	require.False(t, hasOp)
}

func TestCreateNestedContainer(t *testing.T) {
	mods := decode(t, `{
		"/net:interfaces": {"type": "replace", "data": {
			"path": "/net:interfaces",
			"info": {"type": 1, "module": "net", "name": "interfaces"},
			"children": [
				{"info": {"type": 4, "module": "net", "name": "hostname"}, "value": "core"},
				{"info": {"type": 8, "module": "net", "name": "dns"}, "value": ["9.9.9.9"]},
				{"info": {"type": 4, "module": "ext@2024-02-01", "name": "description"}, "value": "x"},
				{"info": {"type": 16, "module": "net", "name": "interface"}, "children": [
					{"info": {"type": 4, "module": "net", "name": "name", "key": true}, "value": "eth9"},
					{"info": {"type": 8, "module": "net", "name": "address"}, "value": ["10.9.9.9"]}
				]}
			]
		}}
	}`)

	tree, err := Build(yangtest.Context(), mods)
	require.NoError(t, err)

	out, err := tree.XML()
	require.NoError(t, err)
	require.Equal(t,
		`<interfaces xmlns="urn:example:net" xmlns:nc="urn:ietf:params:xml:ns:netconf:base:1.0" nc:operation="replace">`+
			`<hostname>core</hostname><dns>9.9.9.9</dns>`+
			`<description xmlns="urn:example:ext">x</description>`+
			`<interface><name>eth9</name><address>10.9.9.9</address></interface>`+
			`</interfaces>`, out)
}

func TestCreateLeafListUsesPayloadPath(t *testing.T) {
	mods := decode(t, `{
		"/net:interfaces/dns": {"type": "create", "data": {
			"path": "/net:interfaces/dns[.='4.4.4.4']",
			"info": {"type": 8, "module": "net", "name": "dns"},
			"value": ["4.4.4.4"]
		}},
		"/net:interfaces/interface[name='a']/enabled": {"type": "delete"}
	}`)

	tree, err := Build(yangtest.Context(), mods)
	require.NoError(t, err)

	dns := find(t, tree, "/net:interfaces/dns[.='4.4.4.4']")
	require.Equal(t, "create", attr(t, dns, yang.AttrNetconf, "operation"))

	enabled := find(t, tree, "/net:interfaces/interface[name='a']/enabled")
	require.False(t, enabled.HasValue)
	require.Equal(t, "delete", attr(t, enabled, yang.AttrNetconf, "operation"))
}

func TestBuildErrors(t *testing.T) {
	ctx := yangtest.Context()
	cases := map[string]struct {
		raw  string
		want error
	}{
		"unknown type": {
			raw:  `{"/net:interfaces/hostname": {"type": "rename"}}`,
			want: ErrInvalidModification,
		},
		"change without value": {
			raw:  `{"/net:interfaces/hostname": {"type": "change"}}`,
			want: ErrInvalidModification,
		},
		"create without data": {
			raw:  `{"/net:interfaces": {"type": "create"}}`,
			want: ErrInvalidModification,
		},
		"create of choice": {
			raw:  `{"/net:interfaces": {"type": "create", "data": {"info": {"type": 2}}}}`,
			want: ErrInvalidModification,
		},
		"unknown node": {
			raw:  `{"/net:nothing": {"type": "delete"}}`,
			want: ErrPath,
		},
		"unknown child module": {
			raw: `{"/net:interfaces": {"type": "create", "data": {
				"info": {"type": 1, "module": "net", "name": "interfaces"},
				"children": [{"info": {"type": 4, "module": "gone", "name": "x"}, "value": "1"}]
			}}}`,
			want: ErrPath,
		},
		"bad insert": {
			raw: `{"/x": {"type": "reorder", "transactions": [
				{"node": "/net:interfaces/dns[.='a']", "insert": "middle"}
			]}}`,
			want: ErrInvalidModification,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(ctx, decode(t, tc.raw))
			require.ErrorIs(t, err, tc.want)
		})
	}
}
