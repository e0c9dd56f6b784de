// Package netconf is the NETCONF/YANG runtime used by the console: it opens
// sessions, runs <get> and <edit-config>, and exposes the compiled schema of
// each session. Interactive decisions taken while opening a session (host
// key, credentials, missing schemas) are delegated to Callbacks.
package netconf

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bhandras/netconsole/internal/yang"
)

// HostKeyState describes how an observed host key relates to what is known
// about the host.
type HostKeyState int

const (
	HostKeyNotKnown     HostKeyState = 0
	HostKeyKnownOK      HostKeyState = 1
	HostKeyChanged      HostKeyState = 2
	HostKeyFoundOther   HostKeyState = 3
	HostKeyFileNotFound HostKeyState = 4
)

// HostKeyRequest is passed to Callbacks.HostKey.
type HostKeyRequest struct {
	Hostname    string
	Port        int
	State       HostKeyState
	KeyType     string
	Fingerprint string
}

// SchemaRequest is passed to Callbacks.Schema for a module the session needs
// but cannot find locally.
type SchemaRequest struct {
	Module            string
	Revision          string
	Submodule         string
	SubmoduleRevision string
}

// Callbacks are invoked synchronously from within Runtime.Open. Any of them
// may be nil, which is treated as a negative answer.
type Callbacks struct {
	HostKey     func(ctx context.Context, req HostKeyRequest) bool
	Password    func(ctx context.Context, username, hostname string) (string, bool)
	Interactive func(ctx context.Context, name, instruction, prompt string, echo bool) (string, bool)
	Schema      func(ctx context.Context, req SchemaRequest) (yang.Format, string, bool)
}

// Target identifies the device to connect to. A non-empty Password skips
// the credential callbacks.
type Target struct {
	Host     string
	Port     int
	Username string
	Password string

	// SchemaDirs are searched for YANG modules before asking the device or
	// the callbacks.
	SchemaDirs []string
}

// Datastore names a configuration datastore.
type Datastore string

const (
	Running   Datastore = "running"
	Candidate Datastore = "candidate"
	Startup   Datastore = "startup"
)

// Runtime opens NETCONF sessions.
type Runtime interface {
	Open(ctx context.Context, target Target, cb Callbacks) (Session, error)
}

// Session is an established NETCONF session.
type Session interface {
	// ID is the session-id announced by the server.
	ID() string
	Host() string
	Port() int
	Capabilities() []string
	Alive() bool

	// Schema returns the schema context compiled for the session.
	Schema() *yang.Context

	// Get fetches config and state data. Failures are *ReplyError or
	// *ConnectionError.
	Get(ctx context.Context) (*yang.DataTree, error)

	// EditConfig applies tree to the datastore. Device rejections are
	// returned as *ReplyError.
	EditConfig(ctx context.Context, ds Datastore, tree *yang.EditTree) error

	Close() error
}

// ModuleRef is a module announced in a capability URI.
type ModuleRef struct {
	Name     string
	Revision string
}

// ParseModuleCapability extracts the module announced by a capability URI of
// the form "<namespace>?module=<name>&revision=<date>".
func ParseModuleCapability(capability string) (ModuleRef, bool) {
	_, query, ok := strings.Cut(capability, "?")
	if !ok {
		return ModuleRef{}, false
	}
	values, err := url.ParseQuery(strings.ReplaceAll(query, "&amp;", "&"))
	if err != nil {
		return ModuleRef{}, false
	}
	name := values.Get("module")
	if name == "" {
		return ModuleRef{}, false
	}
	return ModuleRef{Name: name, Revision: values.Get("revision")}, true
}

// SessionKey formats the registry key of a session.
func SessionKey(s Session) string {
	return fmt.Sprintf("%s:%d:%s", s.Host(), s.Port(), s.ID())
}
