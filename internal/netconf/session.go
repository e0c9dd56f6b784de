package netconf

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/bhandras/netconsole/internal/yang"
	"github.com/bhandras/netconsole/pkg/logger"
)

// Capability URIs used during the hello exchange.
const (
	CapBase10     = "urn:ietf:params:netconf:base:1.0"
	CapBase11     = "urn:ietf:params:netconf:base:1.1"
	CapMonitoring = "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"

	monitoringNS = "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring"
)

type hello struct {
	XMLName      xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 hello"`
	Capabilities []string `xml:"capabilities>capability"`
	SessionID    string   `xml:"session-id,omitempty"`
}

type rpcReply struct {
	XMLName   xml.Name   `xml:"rpc-reply"`
	MessageID string     `xml:"message-id,attr"`
	OK        *struct{}  `xml:"ok"`
	Errors    []RPCError `xml:"rpc-error"`
	Data      *struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"data"`
}

type schemaReply struct {
	Data string `xml:"data"`
}

// session is a NETCONF session over an already established byte stream.
type session struct {
	host string
	port int

	mu     sync.Mutex
	f      *framer
	closer io.Closer
	nextID uint64
	closed bool

	id           string
	capabilities []string
	schema       *yang.Context
}

func newSession(host string, port int, r io.Reader, w io.Writer, closer io.Closer) *session {
	return &session{
		host:   host,
		port:   port,
		f:      newFramer(r, w),
		closer: closer,
		nextID: 1,
	}
}

// handshake exchanges hello messages and selects the framing.
func (s *session) handshake() error {
	out, err := xml.Marshal(hello{Capabilities: []string{CapBase10, CapBase11}})
	if err != nil {
		return err
	}
	if err := s.f.writeMessage(append([]byte(xml.Header), out...)); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	raw, err := s.f.readMessage()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	var server hello
	if err := xml.Unmarshal(raw, &server); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}
	if server.SessionID == "" {
		return errors.New("server hello carries no session-id")
	}

	s.id = strings.TrimSpace(server.SessionID)
	for _, c := range server.Capabilities {
		s.capabilities = append(s.capabilities, strings.TrimSpace(c))
	}
	s.f.chunked = s.hasCapability(CapBase11)
	logger.Debugf("netconf: session %s to %s:%d uses %d capabilities (chunked=%v)",
		s.id, s.host, s.port, len(s.capabilities), s.f.chunked)
	return nil
}

func (s *session) hasCapability(prefix string) bool {
	for _, c := range s.capabilities {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (s *session) ID() string   { return s.id }
func (s *session) Host() string { return s.host }
func (s *session) Port() int    { return s.port }

func (s *session) Capabilities() []string {
	return append([]string(nil), s.capabilities...)
}

func (s *session) Schema() *yang.Context { return s.schema }

func (s *session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// markDead closes the transport after a failure. Callers hold s.mu.
func (s *session) markDead() {
	if s.closed {
		return
	}
	s.closed = true
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	id := strconv.FormatUint(s.nextID, 10)
	s.nextID++
	msg := fmt.Sprintf(`<rpc message-id="%s" xmlns="%s"><close-session/></rpc>`, id, yang.NetconfBaseNS)
	if err := s.f.writeMessage([]byte(msg)); err != nil {
		logger.Debugf("netconf: close-session on %s: %v", s.id, err)
	}
	s.markDead()
	return nil
}

// rpc sends body wrapped in <rpc> and waits for the matching reply. The raw
// reply is returned along with its parsed form.
func (s *session) rpc(ctx context.Context, body string) (*rpcReply, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, &ConnectionError{Err: ErrClosed}
	}

	stop := context.AfterFunc(ctx, func() {
		if s.closer != nil {
			_ = s.closer.Close()
		}
	})
	defer stop()

	id := strconv.FormatUint(s.nextID, 10)
	s.nextID++
	msg := fmt.Sprintf(`<rpc message-id="%s" xmlns="%s">%s</rpc>`, id, yang.NetconfBaseNS, body)
	if err := s.f.writeMessage([]byte(msg)); err != nil {
		s.markDead()
		return nil, nil, &ConnectionError{Err: err}
	}

	for {
		raw, err := s.f.readMessage()
		if err != nil {
			s.markDead()
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, nil, &ConnectionError{Err: err}
		}

		var reply rpcReply
		if err := xml.Unmarshal(raw, &reply); err != nil {
			if bytes.Contains(raw, []byte("<notification")) {
				continue
			}
			return nil, nil, fmt.Errorf("parse reply: %w", err)
		}
		if reply.MessageID != "" && reply.MessageID != id {
			logger.Debugf("netconf: dropping reply %s while waiting for %s", reply.MessageID, id)
			continue
		}

		var errs []RPCError
		for _, e := range reply.Errors {
			if e.Severity == "" || e.Severity == "error" {
				errs = append(errs, e)
			} else {
				logger.Infof("netconf: %s %s: %s", s.id, e.Severity, e.String())
			}
		}
		if len(errs) > 0 {
			return nil, raw, &ReplyError{Errors: errs}
		}
		return &reply, raw, nil
	}
}

func (s *session) Get(ctx context.Context) (*yang.DataTree, error) {
	reply, _, err := s.rpc(ctx, "<get/>")
	if err != nil {
		return nil, err
	}
	if reply.Data == nil {
		return &yang.DataTree{}, nil
	}

	var body bytes.Buffer
	body.WriteString(`<data xmlns="` + yang.NetconfBaseNS + `">`)
	body.Write(reply.Data.Inner)
	body.WriteString(`</data>`)
	tree, err := yang.DecodeXML(s.schema, &body)
	if err != nil {
		return nil, fmt.Errorf("decode <get> reply: %w", err)
	}
	return tree, nil
}

func (s *session) EditConfig(ctx context.Context, ds Datastore, tree *yang.EditTree) error {
	config, err := tree.XML()
	if err != nil {
		return fmt.Errorf("encode edit: %w", err)
	}
	body := fmt.Sprintf(`<edit-config><target><%s/></target><config>%s</config></edit-config>`, ds, config)
	_, _, err = s.rpc(ctx, body)
	return err
}

// getSchema fetches a module source through ietf-netconf-monitoring.
func (s *session) getSchema(ctx context.Context, name, revision string) (string, error) {
	var b strings.Builder
	b.WriteString(`<get-schema xmlns="` + monitoringNS + `"><identifier>`)
	_ = xml.EscapeText(&b, []byte(name))
	b.WriteString(`</identifier>`)
	if revision != "" {
		b.WriteString(`<version>`)
		_ = xml.EscapeText(&b, []byte(revision))
		b.WriteString(`</version>`)
	}
	b.WriteString(`<format>yang</format></get-schema>`)

	_, raw, err := s.rpc(ctx, b.String())
	if err != nil {
		return "", err
	}
	var reply schemaReply
	if err := xml.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("parse get-schema reply: %w", err)
	}
	text := strings.TrimSpace(reply.Data)
	if text == "" {
		return "", fmt.Errorf("device returned an empty schema for %s", name)
	}
	return text, nil
}
