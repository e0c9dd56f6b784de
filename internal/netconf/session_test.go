package netconf

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/bhandras/netconsole/internal/yang"
	"github.com/bhandras/netconsole/internal/yang/yangtest"
)

var messageID = regexp.MustCompile(`message-id="([^"]+)"`)

// handler answers one client RPC. An empty answer drops the connection.
type handler func(rpc string) string

func reply(rpc, body string) string {
	id := messageID.FindStringSubmatch(rpc)[1]
	return fmt.Sprintf(`<rpc-reply message-id="%s" xmlns="%s">%s</rpc-reply>`, id, yang.NetconfBaseNS, body)
}

func serverHello(caps []string) []byte {
	var b strings.Builder
	b.WriteString(`<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><capabilities>`)
	for _, c := range caps {
		b.WriteString("<capability>" + strings.ReplaceAll(c, "&", "&amp;") + "</capability>")
	}
	b.WriteString(`</capabilities><session-id>7</session-id></hello>`)
	return []byte(b.String())
}

func serveNetconf(r io.Reader, w io.WriteCloser, caps []string, h handler) {
	defer w.Close()
	srv := newFramer(r, w)
	if _, err := srv.readMessage(); err != nil {
		return
	}
	if err := srv.writeMessage(serverHello(caps)); err != nil {
		return
	}
	for _, c := range caps {
		if c == CapBase11 {
			srv.chunked = true
		}
	}
	for {
		msg, err := srv.readMessage()
		if err != nil {
			return
		}
		rpc := string(msg)
		if strings.Contains(rpc, "<close-session/>") {
			_ = srv.writeMessage([]byte(reply(rpc, "<ok/>")))
			return
		}
		answer := h(rpc)
		if answer == "" {
			return
		}
		if err := srv.writeMessage([]byte(answer)); err != nil {
			return
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func pipeSession(t *testing.T, caps []string, h handler) *session {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	go serveNetconf(serverR, serverW, caps, h)

	s := newSession("dev", 830, clientR, clientW, closerFunc(func() error {
		_ = clientW.Close()
		return clientR.Close()
	}))
	require.NoError(t, s.handshake())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandshakeSelectsFraming(t *testing.T) {
	s := pipeSession(t, []string{CapBase10, CapBase11, "urn:example:net?module=net"}, nil)
	require.Equal(t, "7", s.ID())
	require.True(t, s.f.chunked)
	require.Len(t, s.Capabilities(), 3)
	require.Equal(t, "dev:830:7", SessionKey(s))

	legacy := pipeSession(t, []string{CapBase10}, nil)
	require.False(t, legacy.f.chunked)
}

func TestGetDecodesData(t *testing.T) {
	s := pipeSession(t, []string{CapBase10, CapBase11}, func(rpc string) string {
		require.Contains(t, rpc, "<get/>")
		return reply(rpc, `<data><interfaces xmlns="urn:example:net"><hostname>h1</hostname><dns>a</dns></interfaces></data>`)
	})
	s.schema = yangtest.Context()

	tree, err := s.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	require.Len(t, tree.Roots[0].Children, 2)
	require.Equal(t, "h1", tree.Roots[0].Children[0].Value)
}

func TestEditConfigReplyError(t *testing.T) {
	var seen string
	s := pipeSession(t, []string{CapBase10}, func(rpc string) string {
		seen = rpc
		return reply(rpc, `
			<rpc-error><error-type>application</error-type><error-tag>invalid-value</error-tag>
			  <error-severity>error</error-severity><error-message>bad mtu</error-message></rpc-error>
			<rpc-error><error-tag>operation-failed</error-tag><error-severity>warning</error-severity></rpc-error>
			<rpc-error><error-tag>data-missing</error-tag><error-severity>error</error-severity></rpc-error>`)
	})
	s.schema = yangtest.Context()

	edit := yang.NewEditTree(s.schema)
	v := "1400"
	node, err := edit.NewPath("/net:interfaces/interface[name='eth0']/mtu", &v)
	require.NoError(t, err)
	node.SetOperation(yang.OpMerge)

	err = s.EditConfig(context.Background(), Running, edit)
	var re *ReplyError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "bad mtu; data-missing; ", re.Error())
	require.Contains(t, seen, "<edit-config><target><running/></target><config><interfaces")
	require.True(t, s.Alive(), "reply errors keep the session")
}

func TestDroppedConnection(t *testing.T) {
	s := pipeSession(t, []string{CapBase10}, func(string) string { return "" })
	s.schema = yangtest.Context()

	_, err := s.Get(context.Background())
	require.True(t, IsConnectionError(err), "%v", err)
	require.False(t, s.Alive())

	_, err = s.Get(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestGetSchemaThenFallback(t *testing.T) {
	dir := t.TempDir()
	var asked atomic.Int32
	s := pipeSession(t, []string{
		CapBase10, CapMonitoring + "?module=ietf-netconf-monitoring",
		"urn:demo?module=demo&revision=2024-05-01",
		"urn:other?module=other",
	}, func(rpc string) string {
		switch {
		case strings.Contains(rpc, "<identifier>demo</identifier>"):
			require.Contains(t, rpc, "<version>2024-05-01</version>")
			return reply(rpc, `<data xmlns="`+monitoringNS+`"><![CDATA[`+demoYANG+`]]></data>`)
		default:
			return reply(rpc, `<rpc-error><error-tag>invalid-value</error-tag><error-severity>error</error-severity></rpc-error>`)
		}
	})

	cb := Callbacks{
		Schema: func(_ context.Context, req SchemaRequest) (yang.Format, string, bool) {
			asked.Add(1)
			switch req.Module {
			case "other":
				return yang.FormatYANG, otherYANG, true
			default:
				return yang.FormatYIN, "<module/>", true
			}
		},
	}

	ctx, err := loadSchemas(context.Background(), s, []string{dir}, cb)
	require.NoError(t, err)
	require.NotNil(t, ctx.Module("demo", "2024-05-01"))
	require.NotNil(t, ctx.Module("other", ""))
	require.Equal(t, int32(2), asked.Load(), "monitoring module and other go to the callback")
}

const demoYANG = `module demo {
  namespace "urn:demo";
  prefix d;
  revision 2024-05-01;
  container top { leaf name { type string; } }
}`

const otherYANG = `module other {
  namespace "urn:other";
  prefix o;
  leaf flag { type boolean; }
}`

func TestHostKeyCallback(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	pub := signer.PublicKey()

	var got HostKeyRequest
	accept := hostKeyCallback(context.Background(), Target{Host: "dev", Port: 830}, Callbacks{
		HostKey: func(_ context.Context, req HostKeyRequest) bool {
			got = req
			return true
		},
	})
	require.NoError(t, accept("dev:830", &net.TCPAddr{}, pub))
	require.Equal(t, HostKeyRequest{
		Hostname:    "dev",
		Port:        830,
		State:       HostKeyNotKnown,
		KeyType:     ssh.KeyAlgoED25519,
		Fingerprint: ssh.FingerprintLegacyMD5(pub),
	}, got)

	reject := hostKeyCallback(context.Background(), Target{Host: "dev"}, Callbacks{})
	require.ErrorIs(t, reject("dev:830", &net.TCPAddr{}, pub), ErrHostKeyRejected)
}

func TestAuthMethods(t *testing.T) {
	require.Len(t, authMethods(context.Background(), Target{Password: "pw"}, Callbacks{}), 2)
	require.Empty(t, authMethods(context.Background(), Target{}, Callbacks{}))

	cb := Callbacks{
		Password:    func(context.Context, string, string) (string, bool) { return "", false },
		Interactive: func(context.Context, string, string, string, bool) (string, bool) { return "", false },
	}
	require.Len(t, authMethods(context.Background(), Target{}, cb), 2)
}

// startSSHServer runs a NETCONF-over-SSH server on a loopback port.
func startSSHServer(t *testing.T, password string, caps []string, h handler) int {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if string(pw) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, cfg, caps, h)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func serveSSH(conn net.Conn, cfg *ssh.ServerConfig, caps []string, h handler) {
	sc, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			return
		}
		go func() {
			for req := range chReqs {
				_ = req.Reply(req.Type == "subsystem", nil)
			}
		}()
		go serveNetconf(ch, ch, caps, h)
	}
}

func TestSSHRuntimeOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo@2024-05-01.yang"), []byte(demoYANG), 0o600))

	port := startSSHServer(t, "secret", []string{
		CapBase10, CapBase11, "urn:demo?module=demo&revision=2024-05-01",
	}, func(rpc string) string {
		return reply(rpc, `<data><top xmlns="urn:demo"><name>n1</name></top></data>`)
	})

	var hostKeys, prompts atomic.Int32
	cb := Callbacks{
		HostKey: func(context.Context, HostKeyRequest) bool {
			hostKeys.Add(1)
			return true
		},
		Password: func(_ context.Context, user, host string) (string, bool) {
			prompts.Add(1)
			require.Equal(t, "admin", user)
			require.Equal(t, "127.0.0.1", host)
			return "secret", true
		},
		Schema: func(context.Context, SchemaRequest) (yang.Format, string, bool) {
			t.Error("schema is available locally")
			return yang.FormatUnknown, "", false
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rt := NewSSHRuntime(5 * time.Second)
	sess, err := rt.Open(ctx, Target{
		Host: "127.0.0.1", Port: port, Username: "admin", SchemaDirs: []string{dir},
	}, cb)
	require.NoError(t, err)
	defer sess.Close()

	require.Equal(t, int32(1), hostKeys.Load())
	require.Equal(t, int32(1), prompts.Load())
	require.Equal(t, fmt.Sprintf("127.0.0.1:%d:7", port), SessionKey(sess))
	require.True(t, sess.Alive())

	tree, err := sess.Get(ctx)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	require.Equal(t, "n1", tree.Roots[0].Children[0].Value)

	require.NoError(t, sess.Close())
	require.False(t, sess.Alive())
}

func TestSSHRuntimeRejectedHostKey(t *testing.T) {
	port := startSSHServer(t, "secret", []string{CapBase10}, nil)

	rt := NewSSHRuntime(5 * time.Second)
	_, err := rt.Open(context.Background(), Target{
		Host: "127.0.0.1", Port: port, Username: "admin", Password: "secret",
	}, Callbacks{
		HostKey: func(context.Context, HostKeyRequest) bool { return false },
	})
	require.ErrorContains(t, err, ErrHostKeyRejected.Error())
}
