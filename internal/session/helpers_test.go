package session

import (
	"context"
	"strings"
	"sync"

	"github.com/bhandras/netconsole/internal/bridge"
	"github.com/bhandras/netconsole/internal/netconf"
	"github.com/bhandras/netconsole/internal/store"
	"github.com/bhandras/netconsole/internal/yang"
	"github.com/bhandras/netconsole/internal/yang/yangtest"
)

type fakeSession struct {
	id     string
	host   string
	port   int
	schema *yang.Context

	mu     sync.Mutex
	alive  bool
	closed int
	edits  []string

	getFn  func(ctx context.Context) (*yang.DataTree, error)
	editFn func(ctx context.Context, tree *yang.EditTree) error
}

func newFakeSession(host string, port int, id string) *fakeSession {
	return &fakeSession{id: id, host: host, port: port, schema: yangtest.Context(), alive: true}
}

func (s *fakeSession) ID() string             { return s.id }
func (s *fakeSession) Host() string           { return s.host }
func (s *fakeSession) Port() int              { return s.port }
func (s *fakeSession) Capabilities() []string { return []string{netconf.CapBase11} }
func (s *fakeSession) Schema() *yang.Context  { return s.schema }

func (s *fakeSession) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSession) Get(ctx context.Context) (*yang.DataTree, error) {
	if s.getFn != nil {
		return s.getFn(ctx)
	}
	return yang.DecodeXML(s.Schema(), strings.NewReader(yangtest.DataXML))
}

func (s *fakeSession) EditConfig(ctx context.Context, ds netconf.Datastore, tree *yang.EditTree) error {
	xml, err := tree.XML()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.edits = append(s.edits, string(ds)+" "+xml)
	s.mu.Unlock()
	if s.editFn != nil {
		return s.editFn(ctx, tree)
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	s.closed++
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeRuntime struct {
	openFn func(ctx context.Context, target netconf.Target, cb netconf.Callbacks) (netconf.Session, error)

	mu      sync.Mutex
	targets []netconf.Target
}

func (r *fakeRuntime) Open(ctx context.Context, target netconf.Target, cb netconf.Callbacks) (netconf.Session, error) {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()
	return r.openFn(ctx, target, cb)
}

type fakeDevices struct {
	devices []store.Device
}

func (f *fakeDevices) Get(_ context.Context, owner, id string) (store.Device, error) {
	for _, d := range f.devices {
		if d.Owner == owner && d.ID == id {
			return d, nil
		}
	}
	return store.Device{}, store.ErrNotFound
}

func (f *fakeDevices) FindBySession(_ context.Context, owner, host string, port int, username string) (store.Device, error) {
	for _, d := range f.devices {
		if d.Owner == owner && d.Hostname == host && d.Port == port && d.Username == username {
			return d, nil
		}
	}
	return store.Device{}, store.ErrNotFound
}

type fakePrompter struct {
	mu       sync.Mutex
	attempts []bridge.Attempt
}

func (p *fakePrompter) Callbacks(a bridge.Attempt) netconf.Callbacks {
	p.mu.Lock()
	p.attempts = append(p.attempts, a)
	p.mu.Unlock()
	return netconf.Callbacks{}
}

type fakeSchemaDirs struct{}

func (fakeSchemaDirs) UserDir(user string) string { return "/schemas/" + user }
