package session

import (
	"sync"

	"github.com/bhandras/netconsole/internal/netconf"
	"github.com/bhandras/netconsole/internal/store"
	"github.com/bhandras/netconsole/internal/yang"
)

// Entry is an open session as held by the registry.
type Entry struct {
	Key     string
	Session netconf.Session

	// Device is the device the session was opened for, as it was at
	// connect time.
	Device store.Device

	mu   sync.Mutex
	data *yang.DataTree
}

// SetData replaces the last fetched data tree.
func (e *Entry) SetData(data *yang.DataTree) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = data
}

// Data returns the last fetched data tree, or nil.
func (e *Entry) Data() *yang.DataTree {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}
