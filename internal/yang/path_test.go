package yang_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bhandras/netconsole/internal/yang"
)

func TestParsePath(t *testing.T) {
	steps, err := yang.ParsePath(`/net:interfaces/interface[name='eth/0'][unit="it's"]/address[.='10.0.0.1']`)
	require.NoError(t, err)
	require.Equal(t, []yang.Step{
		{Module: "net", Name: "interfaces"},
		{Name: "interface", Predicates: []yang.Predicate{
			{Key: "name", Value: "eth/0"},
			{Key: "unit", Value: "it's"},
		}},
		{Name: "address", Predicates: []yang.Predicate{{Key: ".", Value: "10.0.0.1"}}},
	}, steps)

	require.Equal(t, `interface[name='eth/0'][unit="it's"]`, steps[1].String())
}

func TestParsePathErrors(t *testing.T) {
	for _, p := range []string{
		"",
		"relative/path",
		"/a//b",
		"/a[name]",
		"/a[name=unquoted]",
		"/a[name='open",
		"/a[name='x'",
	} {
		_, err := yang.ParsePath(p)
		require.Error(t, err, p)
	}
}

func TestParsePredicates(t *testing.T) {
	preds, err := yang.ParsePredicates(`[name='a'][x:unit='0']`)
	require.NoError(t, err)
	require.Equal(t, []yang.Predicate{{Key: "name", Value: "a"}, {Key: "unit", Value: "0"}}, preds)

	_, err = yang.ParsePredicates(`name='a'`)
	require.Error(t, err)
}
