// Package session owns the NETCONF sessions opened on behalf of users: it
// connects devices through the runtime, keeps the sessions in a per-user
// registry, and serves data fetches and commits against them.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/bhandras/netconsole/internal/bridge"
	"github.com/bhandras/netconsole/internal/edit"
	"github.com/bhandras/netconsole/internal/metrics"
	"github.com/bhandras/netconsole/internal/netconf"
	"github.com/bhandras/netconsole/internal/store"
	"github.com/bhandras/netconsole/internal/tree"
	"github.com/bhandras/netconsole/pkg/logger"
)

// DeviceResolver looks up stored devices.
type DeviceResolver interface {
	Get(ctx context.Context, owner, id string) (store.Device, error)
	FindBySession(ctx context.Context, owner, host string, port int, username string) (store.Device, error)
}

// Prompter supplies the interactive callbacks for one connect.
type Prompter interface {
	Callbacks(a bridge.Attempt) netconf.Callbacks
}

// SchemaDirs maps a user to the directory holding their schema sources.
type SchemaDirs interface {
	UserDir(user string) string
}

// Manager serves session operations for the HTTP API.
type Manager struct {
	runtime  netconf.Runtime
	registry *Registry
	devices  DeviceResolver
	prompter Prompter
	schemas  SchemaDirs
}

func NewManager(
	runtime netconf.Runtime,
	registry *Registry,
	devices DeviceResolver,
	prompter Prompter,
	schemas SchemaDirs,
) *Manager {
	return &Manager{
		runtime:  runtime,
		registry: registry,
		devices:  devices,
		prompter: prompter,
		schemas:  schemas,
	}
}

// ConnectRequest names the device to connect to: a stored device by id, or
// a one-time device given inline.
type ConnectRequest struct {
	DeviceID string
	Device   *store.Device
}

// Connect opens a session for userID. loginSessionID identifies the browser
// that answers the prompts raised while connecting. The new session key is
// returned.
func (m *Manager) Connect(ctx context.Context, userID, loginSessionID string, req ConnectRequest) (string, error) {
	var device store.Device
	switch {
	case req.DeviceID != "":
		d, err := m.devices.Get(ctx, userID, req.DeviceID)
		if errors.Is(err, store.ErrNotFound) {
			return "", errorf(StatusNotFound, msgDeviceNotFound)
		}
		if err != nil {
			return "", newError(StatusConnection, err)
		}
		device = d
	case req.Device != nil:
		device = *req.Device
		device.ID = ""
		device.Owner = userID
		if err := device.Validate(); err != nil {
			return "", newError(StatusRequest, err)
		}
	default:
		return "", errorf(StatusRequest, "Missing device.")
	}

	target := netconf.Target{
		Host:     device.Hostname,
		Port:     device.Port,
		Username: device.Username,
		Password: device.Password,
	}
	if m.schemas != nil {
		target.SchemaDirs = []string{m.schemas.UserDir(userID)}
	}
	attempt := bridge.Attempt{SessionID: loginSessionID, UserID: userID, Device: device}

	start := time.Now()
	sess, err := m.runtime.Open(ctx, target, m.prompter.Callbacks(attempt))
	metrics.ObserveRPC("connect", start, err)
	if err != nil {
		logger.Infof("session: connect %s@%s:%d for %s failed: %v",
			device.Username, device.Hostname, device.Port, userID, err)
		return "", newError(StatusConnection, err)
	}

	key := netconf.SessionKey(sess)
	device.Password = ""
	replaced, err := m.registry.Put(userID, key, &Entry{Session: sess, Device: device})
	if err != nil {
		_ = sess.Close()
		return "", newError(StatusConnection, err)
	}
	if replaced != nil {
		closeEntry(replaced)
		metrics.SessionsOpen.Dec()
	}
	metrics.SessionsOpen.Inc()
	logger.Infof("session: %s opened %s", userID, key)
	return key, nil
}

func (m *Manager) lookup(userID, key string) (*Entry, error) {
	if key == "" {
		return nil, errorf(StatusRequest, msgMissingKey)
	}
	e, ok := m.registry.Get(userID, key)
	if !ok {
		return nil, errorf(StatusNotFound, msgInvalidKey)
	}
	return e, nil
}

// Capabilities returns the capabilities announced by the device.
func (m *Manager) Capabilities(userID, key string) ([]string, error) {
	e, err := m.lookup(userID, key)
	if err != nil {
		return nil, err
	}
	return e.Session.Capabilities(), nil
}

// Alive reports an error unless key names a usable session. A registered
// session whose transport died is evicted.
func (m *Manager) Alive(userID, key string) error {
	e, ok := m.registry.Get(userID, key)
	if !ok {
		return errorf(StatusNotFound, msgSessionNotFound)
	}
	if !e.Session.Alive() {
		m.evict(userID, key)
		return errorf(StatusGone, "Connection to %s:%d was lost.", e.Session.Host(), e.Session.Port())
	}
	return nil
}

// Listed is an open session with the device it belongs to.
type Listed struct {
	Key    string       `json:"key"`
	Device store.Device `json:"device"`
}

// List returns the open sessions of userID. The device is resolved from the
// store when possible so that renamed devices show their current name.
func (m *Manager) List(ctx context.Context, userID string) []Listed {
	entries := m.registry.List(userID)
	out := make([]Listed, 0, len(entries))
	for _, e := range entries {
		device := e.Device
		if m.devices != nil {
			d, err := m.devices.FindBySession(ctx, userID, e.Session.Host(), e.Session.Port(), e.Device.Username)
			if err == nil {
				device = d
			}
		}
		device.Password = ""
		out = append(out, Listed{Key: e.Key, Device: device})
	}
	return out
}

// Close closes and forgets one session.
func (m *Manager) Close(userID, key string) error {
	if !m.evict(userID, key) {
		return errorf(StatusNotFound, msgSessionNotFound)
	}
	return nil
}

// CloseAll closes every session of userID.
func (m *Manager) CloseAll(userID string) {
	for _, e := range m.registry.RemoveAll(userID) {
		closeEntry(e)
		metrics.SessionsOpen.Dec()
	}
}

// Shutdown closes every registered session.
func (m *Manager) Shutdown() {
	for _, u := range m.registry.Users() {
		m.CloseAll(u)
	}
}

func (m *Manager) evict(userID, key string) bool {
	e, ok := m.registry.Remove(userID, key)
	if !ok {
		return false
	}
	closeEntry(e)
	metrics.SessionsOpen.Dec()
	return true
}

func closeEntry(e *Entry) {
	if err := e.Session.Close(); err != nil {
		logger.Debugf("session: close %s: %v", e.Key, err)
	}
}

// DataQuery selects what Fetch renders. An empty Path renders the top-level
// nodes.
type DataQuery struct {
	Key       string
	Path      string
	Recursive bool
}

// Fetch runs <get> on the session and renders the result. The value is a
// *tree.Rendered when q.Path is set and a []*tree.Rendered otherwise.
func (m *Manager) Fetch(ctx context.Context, userID string, q DataQuery) (any, error) {
	e, err := m.lookup(userID, q.Key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := e.Session.Get(ctx)
	metrics.ObserveRPC("get", start, err)
	if err != nil {
		if netconf.IsConnectionError(err) {
			m.evict(userID, q.Key)
			return nil, newError(StatusGone, err)
		}
		return nil, newError(StatusProtocol, err)
	}
	e.SetData(data)

	p := tree.New(e.Session.Schema())
	if q.Path == "" {
		return p.Roots(data, q.Recursive), nil
	}
	r, err := p.Subtree(data, q.Path, q.Recursive)
	if err != nil {
		return nil, newError(StatusNotFound, err)
	}
	return r, nil
}

// Commit builds one edit-config from mods and applies it to the running
// datastore.
func (m *Manager) Commit(ctx context.Context, userID, key string, mods edit.Modifications) error {
	e, err := m.lookup(userID, key)
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		return errorf(StatusRequest, "Missing modifications.")
	}

	edits, err := edit.Build(e.Session.Schema(), mods)
	if err != nil {
		if errors.Is(err, edit.ErrPath) {
			return newError(StatusNotFound, err)
		}
		return newError(StatusRequest, err)
	}

	start := time.Now()
	err = e.Session.EditConfig(ctx, netconf.Running, edits)
	metrics.ObserveRPC("edit-config", start, err)
	if err == nil {
		logger.Infof("session: %s committed %d modifications on %s", userID, len(mods), key)
		return nil
	}

	if netconf.IsConnectionError(err) {
		m.evict(userID, key)
		return newError(StatusGone, err)
	}
	return newError(StatusCommit, err)
}
