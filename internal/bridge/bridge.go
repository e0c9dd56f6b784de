// Package bridge answers the interactive questions a NETCONF runtime asks
// while opening a session (host key, credentials, missing schemas) by
// prompting the user's browser and waiting for its reply.
//
// Every prompt is keyed by the login session id of the browser that started
// the connect, so concurrent connects from different logins never share a
// rendezvous entry.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhandras/netconsole/internal/metrics"
	"github.com/bhandras/netconsole/internal/netconf"
	"github.com/bhandras/netconsole/internal/rendezvous"
	"github.com/bhandras/netconsole/internal/store"
	"github.com/bhandras/netconsole/internal/yang"
	"github.com/bhandras/netconsole/pkg/logger"
	"github.com/bhandras/netconsole/pkg/wire"
)

// Prompt kinds, used as metric labels.
const (
	kindHostKey     = "hostkey"
	kindCredentials = "credentials"
	kindSchema      = "schema"
)

// PasswordAuthType is the prompt type sent for plain password auth.
const PasswordAuthType = "Password Authentication"

// Answer is a browser reply as routed to a waiting prompt.
type Answer struct {
	Event   string
	Payload any
}

// Emitter delivers a server -> browser event to the sockets of one login
// session. Emit must not block on the prompt being answered.
type Emitter interface {
	Emit(userID, sessionID, event string, payload any)
}

// FingerprintStore persists confirmed host keys.
type FingerprintStore interface {
	UpdateFingerprint(ctx context.Context, d store.Device, fingerprint string) error
}

// SchemaWriter caches schema sources received from the browser.
type SchemaWriter interface {
	Save(user, filename string, data []byte) (string, error)
}

// Timeouts bounds how long each prompt waits for the browser.
type Timeouts struct {
	HostKey     time.Duration
	Credentials time.Duration
	Schema      time.Duration
}

// DefaultTimeouts returns the prompt timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		HostKey:     30 * time.Second,
		Credentials: 60 * time.Second,
		Schema:      300 * time.Second,
	}
}

// Attempt describes one connect: who asked for it and which device it targets.
type Attempt struct {
	SessionID string
	UserID    string
	Device    store.Device
}

func (a Attempt) deviceInfo() *wire.DeviceInfo {
	return &wire.DeviceInfo{
		ID:       a.Device.ID,
		Name:     a.Device.Name,
		Hostname: a.Device.Hostname,
		Port:     a.Device.Port,
		Username: a.Device.Username,
	}
}

// Bridge turns runtime callbacks into browser round trips.
type Bridge struct {
	answers      *rendezvous.Channel[Answer]
	emitter      Emitter
	fingerprints FingerprintStore
	schemas      SchemaWriter
	timeouts     Timeouts
}

// New creates a Bridge. fingerprints and schemas may be nil, in which case
// nothing is persisted.
func New(
	answers *rendezvous.Channel[Answer],
	emitter Emitter,
	fingerprints FingerprintStore,
	schemas SchemaWriter,
	timeouts Timeouts,
) *Bridge {
	return &Bridge{
		answers:      answers,
		emitter:      emitter,
		fingerprints: fingerprints,
		schemas:      schemas,
		timeouts:     timeouts,
	}
}

// Callbacks binds the bridge to one connect attempt.
func (b *Bridge) Callbacks(a Attempt) netconf.Callbacks {
	return netconf.Callbacks{
		HostKey: func(ctx context.Context, req netconf.HostKeyRequest) bool {
			return b.HostKey(ctx, a, req)
		},
		Password: func(ctx context.Context, username, hostname string) (string, bool) {
			return b.Credentials(ctx, a, CredentialRequest{
				Type: PasswordAuthType,
				Msg:  username + "@" + hostname,
			})
		},
		Interactive: func(ctx context.Context, name, instruction, prompt string, _ bool) (string, bool) {
			return b.Credentials(ctx, a, CredentialRequest{
				Type:   name,
				Msg:    instruction,
				Prompt: prompt,
			})
		},
		Schema: func(ctx context.Context, req netconf.SchemaRequest) (yang.Format, string, bool) {
			return b.Schema(ctx, a, req)
		},
	}
}

// HostKey asks the browser to confirm a host key. A key matching the
// fingerprint stored on the device is accepted without asking. Confirmed keys
// are stored for later connects.
func (b *Bridge) HostKey(ctx context.Context, a Attempt, req netconf.HostKeyRequest) bool {
	if stored := a.Device.Fingerprint; stored != "" {
		if req.Fingerprint == stored {
			metrics.PromptsTotal.WithLabelValues(kindHostKey, metrics.OutcomeTrusted).Inc()
			return true
		}
		if req.State != netconf.HostKeyChanged {
			logger.Warnf("bridge: host key of %s differs from the stored one (state %d)", req.Hostname, req.State)
			req.State = netconf.HostKeyChanged
		}
	}

	msg := wire.HostCheckRequest{
		ID:       a.SessionID,
		Hostname: req.Hostname,
		State:    int(req.State),
		KeyType:  req.KeyType,
		Hexa:     req.Fingerprint,
		Device:   a.deviceInfo(),
	}
	answer, ok := b.exchange(ctx, a, kindHostKey, wire.EventHostCheck, msg, b.timeouts.HostKey)
	if !ok {
		return false
	}
	res, err := decodeAnswer[wire.HostCheckResult](answer, wire.EventHostCheckResult)
	if err != nil {
		logger.Warnf("bridge: invalid hostcheck answer for session %s: %v", a.SessionID, err)
		metrics.PromptsTotal.WithLabelValues(kindHostKey, metrics.OutcomeInvalid).Inc()
		return false
	}
	if !res.Result {
		metrics.PromptsTotal.WithLabelValues(kindHostKey, metrics.OutcomeRejected).Inc()
		return false
	}
	metrics.PromptsTotal.WithLabelValues(kindHostKey, metrics.OutcomeAnswered).Inc()

	if b.fingerprints != nil {
		d := a.Device
		if d.Owner == "" {
			d.Owner = a.UserID
		}
		if err := b.fingerprints.UpdateFingerprint(ctx, d, req.Fingerprint); err != nil {
			logger.Warnf("bridge: store fingerprint of %s: %v", req.Hostname, err)
		}
	}
	return true
}

// CredentialRequest is the text shown to the user when a secret is needed.
type CredentialRequest struct {
	Type   string
	Msg    string
	Prompt string
}

// Credentials asks the browser for a password or keyboard-interactive answer.
func (b *Bridge) Credentials(ctx context.Context, a Attempt, req CredentialRequest) (string, bool) {
	msg := wire.DeviceAuthRequest{
		ID:     a.SessionID,
		Type:   req.Type,
		Msg:    req.Msg,
		Prompt: req.Prompt,
		Device: a.deviceInfo(),
	}
	answer, ok := b.exchange(ctx, a, kindCredentials, wire.EventDeviceAuth, msg, b.timeouts.Credentials)
	if !ok {
		return "", false
	}
	res, err := decodeAnswer[wire.DeviceAuthAnswer](answer, wire.EventDeviceAuthPassword)
	if err == nil && res.Password == nil {
		err = errors.New("no password in answer")
	}
	if err != nil {
		logger.Warnf("bridge: invalid credential answer for session %s: %v", a.SessionID, err)
		metrics.PromptsTotal.WithLabelValues(kindCredentials, metrics.OutcomeInvalid).Inc()
		return "", false
	}
	metrics.PromptsTotal.WithLabelValues(kindCredentials, metrics.OutcomeAnswered).Inc()
	return *res.Password, true
}

// Schema asks the browser for the source of a module the session needs. The
// received file is cached in the user's schema directory; a failed write is
// only logged.
func (b *Bridge) Schema(ctx context.Context, a Attempt, req netconf.SchemaRequest) (yang.Format, string, bool) {
	msg := wire.SchemaRequest{
		ID:             a.SessionID,
		Name:           req.Module,
		Revision:       req.Revision,
		SubmodName:     req.Submodule,
		SubmodRevision: req.SubmoduleRevision,
	}
	answer, ok := b.exchange(ctx, a, kindSchema, wire.EventGetSchema, msg, b.timeouts.Schema)
	if !ok {
		return yang.FormatUnknown, "", false
	}
	res, err := decodeAnswer[wire.SchemaResult](answer, wire.EventGetSchemaResult)
	if err != nil {
		logger.Warnf("bridge: invalid schema answer for session %s: %v", a.SessionID, err)
		metrics.PromptsTotal.WithLabelValues(kindSchema, metrics.OutcomeInvalid).Inc()
		return yang.FormatUnknown, "", false
	}
	format, ok := yang.FormatFromFilename(res.Filename)
	if !ok {
		logger.Warnf("bridge: schema %q for module %s has an unknown format", res.Filename, req.Module)
		metrics.PromptsTotal.WithLabelValues(kindSchema, metrics.OutcomeInvalid).Inc()
		return yang.FormatUnknown, "", false
	}
	metrics.PromptsTotal.WithLabelValues(kindSchema, metrics.OutcomeAnswered).Inc()

	if b.schemas != nil {
		if _, err := b.schemas.Save(a.UserID, res.Filename, []byte(res.Data)); err != nil {
			logger.Warnf("bridge: cache schema %s: %v", res.Filename, err)
		}
	}
	return format, res.Data, true
}

// exchange emits event and waits for the reply under the attempt's session
// id. The rendezvous entry is gone when exchange returns.
func (b *Bridge) exchange(ctx context.Context, a Attempt, kind, event string, payload any, timeout time.Duration) (Answer, bool) {
	answer, err := b.answers.Exchange(ctx, a.SessionID, timeout, func() error {
		if b.emitter == nil {
			return errors.New("no browser channel")
		}
		b.emitter.Emit(a.UserID, a.SessionID, event, payload)
		return nil
	})
	if err == nil {
		return answer, true
	}

	outcome := metrics.OutcomeFailed
	if errors.Is(err, rendezvous.ErrTimeout) {
		outcome = metrics.OutcomeTimeout
	}
	logger.Infof("bridge: %s prompt for session %s: %v", kind, a.SessionID, err)
	metrics.PromptsTotal.WithLabelValues(kind, outcome).Inc()
	return Answer{}, false
}

func decodeAnswer[T wire.Answer](a Answer, event string) (T, error) {
	if a.Event != event {
		var zero T
		return zero, fmt.Errorf("expected %s, got %s", event, a.Event)
	}
	return wire.Decode[T](a.Payload)
}
