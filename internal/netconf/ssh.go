package netconf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/bhandras/netconsole/internal/yang"
	"github.com/bhandras/netconsole/pkg/logger"
)

// DefaultPort is the IANA port of NETCONF over SSH.
const DefaultPort = 830

// ErrHostKeyRejected is returned by Open when the host key was not accepted.
var ErrHostKeyRejected = errors.New("host key rejected")

// SSHRuntime opens NETCONF sessions over SSH.
type SSHRuntime struct {
	DialTimeout time.Duration
}

// NewSSHRuntime returns a runtime with the given dial timeout.
func NewSSHRuntime(dialTimeout time.Duration) *SSHRuntime {
	return &SSHRuntime{DialTimeout: dialTimeout}
}

// Open dials the target, authenticates, exchanges hellos and compiles the
// schemas announced by the device.
func (r *SSHRuntime) Open(ctx context.Context, target Target, cb Callbacks) (Session, error) {
	if target.Port == 0 {
		target.Port = DefaultPort
	}
	addr := net.JoinHostPort(target.Host, strconv.Itoa(target.Port))

	config := &ssh.ClientConfig{
		User:            target.Username,
		HostKeyCallback: hostKeyCallback(ctx, target, cb),
		Auth:            authMethods(ctx, target, cb),
		Timeout:         r.DialTimeout,
	}

	dialer := net.Dialer{Timeout: r.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open ssh channel: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := sess.RequestSubsystem("netconf"); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("start netconf subsystem: %w", err)
	}

	s := newSession(target.Host, target.Port, stdout, stdin, client)
	if err := s.handshake(); err != nil {
		_ = client.Close()
		return nil, err
	}
	go func() {
		_ = client.Wait()
		s.mu.Lock()
		s.markDead()
		s.mu.Unlock()
	}()

	schema, err := loadSchemas(ctx, s, target.SchemaDirs, cb)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.schema = schema
	return s, nil
}

func hostKeyCallback(ctx context.Context, target Target, cb Callbacks) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		req := HostKeyRequest{
			Hostname:    target.Host,
			Port:        target.Port,
			State:       HostKeyNotKnown,
			KeyType:     key.Type(),
			Fingerprint: ssh.FingerprintLegacyMD5(key),
		}
		if cb.HostKey == nil || !cb.HostKey(ctx, req) {
			logger.Infof("netconf: host key %s for %s (%s) rejected", req.Fingerprint, hostname, remote)
			return ErrHostKeyRejected
		}
		return nil
	}
}

func authMethods(ctx context.Context, target Target, cb Callbacks) []ssh.AuthMethod {
	if target.Password != "" {
		pw := target.Password
		return []ssh.AuthMethod{
			ssh.Password(pw),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = pw
				}
				return answers, nil
			}),
		}
	}

	var methods []ssh.AuthMethod
	if cb.Interactive != nil {
		methods = append(methods, ssh.KeyboardInteractive(
			func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i, q := range questions {
					echo := i < len(echos) && echos[i]
					answer, ok := cb.Interactive(ctx, name, instruction, q, echo)
					if !ok {
						return nil, errors.New("keyboard-interactive prompt not answered")
					}
					answers[i] = answer
				}
				return answers, nil
			}))
	}
	if cb.Password != nil {
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			pw, ok := cb.Password(ctx, target.Username, target.Host)
			if !ok {
				return "", errors.New("password prompt not answered")
			}
			return pw, nil
		}))
	}
	return methods
}

// loadSchemas compiles every module the device announces. Modules missing
// from dirs are fetched with <get-schema> when the device supports it and
// otherwise requested through the Schema callback.
func loadSchemas(ctx context.Context, s *session, dirs []string, cb Callbacks) (*yang.Context, error) {
	loader := yang.NewLoader(dirs...)
	sources := make(map[string]string)

	for _, c := range s.capabilities {
		ref, ok := ParseModuleCapability(c)
		if !ok || loader.Has(ref.Name, ref.Revision) {
			continue
		}
		name := ref.Name
		if ref.Revision != "" {
			name += "@" + ref.Revision
		}

		if s.hasCapability(CapMonitoring) {
			text, err := s.getSchema(ctx, ref.Name, ref.Revision)
			if err == nil {
				sources[name+".yang"] = text
				continue
			}
			if IsConnectionError(err) {
				return nil, err
			}
			logger.Debugf("netconf: get-schema %s: %v", name, err)
		}

		if cb.Schema == nil {
			logger.Warnf("netconf: no source for module %s", name)
			continue
		}
		format, text, ok := cb.Schema(ctx, SchemaRequest{Module: ref.Name, Revision: ref.Revision})
		switch {
		case !ok:
			logger.Warnf("netconf: module %s was not provided", name)
		case format != yang.FormatYANG:
			logger.Warnf("netconf: module %s provided as %s, which cannot be compiled", name, format)
		default:
			sources[name+".yang"] = text
		}
	}

	schema, err := loader.Load(sources)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	return schema, nil
}
