package netconf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndOfMessageFraming(t *testing.T) {
	var wire bytes.Buffer
	w := newFramer(nil, &wire)
	require.NoError(t, w.writeMessage([]byte("<a/>")))
	require.NoError(t, w.writeMessage([]byte("<b>]]></b>")))
	require.Equal(t, "<a/>]]>]]><b>]]></b>]]>]]>", wire.String())

	r := newFramer(&wire, nil)
	msg, err := r.readMessage()
	require.NoError(t, err)
	require.Equal(t, "<a/>", string(msg))

	msg, err = r.readMessage()
	require.NoError(t, err)
	require.Equal(t, "<b>]]></b>", string(msg))
}

func TestChunkedFraming(t *testing.T) {
	var wire bytes.Buffer
	w := newFramer(nil, &wire)
	w.chunked = true
	require.NoError(t, w.writeMessage([]byte("<rpc/>")))
	require.Equal(t, "\n#6\n<rpc/>\n##\n", wire.String())

	wire.WriteString("\n#3\n<a>\n#4\n</a>\n##\n")

	r := newFramer(&wire, nil)
	r.chunked = true
	msg, err := r.readMessage()
	require.NoError(t, err)
	require.Equal(t, "<rpc/>", string(msg))

	msg, err = r.readMessage()
	require.NoError(t, err)
	require.Equal(t, "<a></a>", string(msg))
}

func TestChunkedFramingRejectsGarbage(t *testing.T) {
	for _, wire := range []string{
		"#3\nabc\n##\n",
		"\n#x\nabc\n##\n",
		"\n#0\n\n##\n",
		"\n#3\nab",
	} {
		r := newFramer(strings.NewReader(wire), nil)
		r.chunked = true
		_, err := r.readMessage()
		require.Error(t, err, "%q", wire)
	}
}

func TestReplyErrorConcatenates(t *testing.T) {
	err := &ReplyError{Errors: []RPCError{
		{Tag: "invalid-value", Message: "bad mtu", Path: "/net:interfaces/mtu"},
		{Tag: "data-missing"},
	}}
	require.Equal(t, "bad mtu (/net:interfaces/mtu); data-missing; ", err.Error())
}

func TestParseModuleCapability(t *testing.T) {
	ref, ok := ParseModuleCapability("urn:example:net?module=net&amp;revision=2024-01-01&features=a,b")
	require.True(t, ok)
	require.Equal(t, ModuleRef{Name: "net", Revision: "2024-01-01"}, ref)

	ref, ok = ParseModuleCapability("urn:example:ext?module=ext")
	require.True(t, ok)
	require.Equal(t, ModuleRef{Name: "ext"}, ref)

	_, ok = ParseModuleCapability(CapBase11)
	require.False(t, ok)

	_, ok = ParseModuleCapability("urn:x?revision=2020-01-01")
	require.False(t, ok)
}
